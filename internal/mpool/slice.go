package mpool

// sliceHeader is the bookkeeping record for one slab-allocated block.
// prev/next thread exactly one of: the node-local free sublist, the
// pool-wide free list, or the pool-wide in-use list — never more than
// one at a time, per spec.
//
// The C source recovers a sliceHeader from a caller's payload pointer
// by a fixed negative offset; that trick relies on placing the header
// immediately before the payload in the same malloc'd region. Go's
// garbage collector does not let us safely overlay a pointer-bearing
// struct on a plain []byte that way (the backing array's type carries
// no pointer information for the GC to trace), so this translation
// keeps the header as an ordinary Go struct and hands callers a Block
// that already carries the header pointer. Recovery is O(1) either
// way; only the representation changed.
type sliceHeader struct {
	node    *node
	tag     int32
	prev    *sliceHeader
	next    *sliceHeader
	payload []byte
}

// Block is the opaque handle returned by Alloc. It is this repository's
// translation of the raw payload pointer in spec.md's External
// Interfaces table: Size and Free recover everything they need from
// the Block itself, without the caller tracking which pool or node it
// came from.
type Block struct {
	slice *sliceHeader
}

// Bytes returns the payload region. Its length equals the owning
// pool's object size, which for a block obtained through AllocMulti is
// the bucket size, not necessarily the size originally requested.
func (b *Block) Bytes() []byte {
	if b == nil || b.slice == nil {
		return nil
	}
	return b.slice.payload
}
