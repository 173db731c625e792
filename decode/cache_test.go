package decode_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/decode"
)

var _ = Describe("BasicBlockCache", func() {
	var (
		translator *decode.FixtureTranslator
		cache      *decode.BasicBlockCache
	)

	BeforeEach(func() {
		translator = decode.NewFixtureTranslator([]decode.FixtureBlock{
			{RIP: 0x1000, Bytes: 8, Ops: []decode.FixtureUop{{Opcode: "add", SOM: true, EOM: true}}},
			{RIP: 0x2000, Bytes: 8, Ops: []decode.FixtureUop{{Opcode: "sub", SOM: true, EOM: true}}},
			{RIP: 0x3000, Bytes: 8, Ops: []decode.FixtureUop{{Opcode: "nop", SOM: true, EOM: true}}},
		})
		cache = decode.NewBasicBlockCache(translator, 2)
	})

	It("translates on a miss and caches on a hit", func() {
		key := decode.RIPVirtPhys{RIP: 0x1000}
		bb1, err := cache.Fetch(key)
		Expect(err).NotTo(HaveOccurred())
		bb2, err := cache.Fetch(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(bb1).To(BeIdenticalTo(bb2))
	})

	It("evicts the least recently used block once at capacity", func() {
		_, _ = cache.Fetch(decode.RIPVirtPhys{RIP: 0x1000})
		_, _ = cache.Fetch(decode.RIPVirtPhys{RIP: 0x2000})
		Expect(cache.Size()).To(Equal(2))

		_, _ = cache.Fetch(decode.RIPVirtPhys{RIP: 0x3000})
		Expect(cache.Size()).To(Equal(2))
		Expect(cache.Contains(decode.RIPVirtPhys{RIP: 0x1000})).To(BeFalse())
		Expect(cache.Contains(decode.RIPVirtPhys{RIP: 0x3000})).To(BeTrue())
	})

	It("invalidates every block covering a dirtied page", func() {
		key := decode.RIPVirtPhys{RIP: 0x1000}
		bb, _ := cache.Fetch(key)
		Expect(cache.Contains(key)).To(BeTrue())

		n := cache.InvalidatePage(bb.Key.MfnLo, "smc")
		Expect(n).To(Equal(1))
		Expect(cache.Contains(key)).To(BeFalse())
	})
})
