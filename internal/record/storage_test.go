package record

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		basePath string
		storage  *LocalStorage
	)

	BeforeEach(func() {
		basePath = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(basePath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates the base directory if missing", func() {
		nested := filepath.Join(basePath, "a", "b")
		_, err := NewLocalStorage(nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(nested).To(BeADirectory())
	})

	It("saves and retrieves a file", func() {
		path, err := storage.Save("receipt.jpg", []byte("imagedata"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("receipt.jpg"))

		data, err := storage.Get(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("imagedata")))
	})

	It("writes under the base path", func() {
		_, err := storage.Save("receipt.jpg", []byte("x"))
		Expect(err).NotTo(HaveOccurred())

		_, err = os.Stat(filepath.Join(basePath, "receipt.jpg"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("deletes a file", func() {
		path, err := storage.Save("receipt.jpg", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.Delete(path)).To(Succeed())

		_, err = storage.Get(path)
		Expect(err).To(HaveOccurred())
	})

	It("fails to get a missing file", func() {
		_, err := storage.Get("nope.jpg")
		Expect(err).To(HaveOccurred())
	})

	It("fails to delete a missing file", func() {
		Expect(storage.Delete("nope.jpg")).NotTo(Succeed())
	})
})
