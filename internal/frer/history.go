package frer

const historyWords = (1 << 16) / 64

// history is the seen-set of one stream: a bitset over the whole 16-bit
// sequence space plus, when limited, a FIFO of first-seen numbers.
type history struct {
	seen  [historyWords]uint64
	count int
	limit int

	order []uint16
	head  int

	unique    uint64
	duplicate uint64
	evicted   uint64
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) contains(seq uint16) bool {
	return h.seen[seq>>6]&(1<<(seq&63)) != 0
}

// insert marks seq as seen and reports whether it was unseen.
func (h *history) insert(seq uint16) bool {
	if h.contains(seq) {
		return false
	}
	h.seen[seq>>6] |= 1 << (seq & 63)
	h.count++
	h.remember(seq)
	return true
}

func (h *history) remember(seq uint16) {
	if h.limit <= 0 {
		return
	}
	if len(h.order) < h.limit {
		h.order = append(h.order, seq)
		return
	}
	h.forget(h.order[h.head])
	h.order[h.head] = seq
	h.head = (h.head + 1) % h.limit
}

func (h *history) forget(seq uint16) {
	h.seen[seq>>6] &^= 1 << (seq & 63)
	h.count--
	h.evicted++
}
