package engine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewGemini", func() {
	It("requires an API key", func() {
		_, err := NewGemini(Descriptor{ID: "gemini"}, "", "")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("stripCodeFences", func() {
	It("removes a json fence", func() {
		Expect(stripCodeFences("```json\n[{\"name\": \"x\"}]\n```")).To(Equal(`[{"name": "x"}]`))
	})

	It("removes a bare fence", func() {
		Expect(stripCodeFences("```\n{}\n```")).To(Equal("{}"))
	})

	It("leaves unfenced text alone", func() {
		Expect(stripCodeFences(`[{"name": "x"}]`)).To(Equal(`[{"name": "x"}]`))
	})
})
