package i3dex

// idCategory separates the independent id spaces of an i3d document.
type idCategory int

const (
	idNode idCategory = iota
	idShape
	idMaterial
	idFile
	idCategoryCount
)

// idAllocator hands out integer ids per category, starting at 1 and strictly
// increasing. Ids are never reused, even if the owning entity is discarded.
// One allocator belongs to exactly one export session.
type idAllocator struct {
	next [idCategoryCount]int
}

func newIDAllocator() *idAllocator {
	a := &idAllocator{}
	for i := range a.next {
		a.next[i] = 1
	}
	return a
}

func (a *idAllocator) Next(category idCategory) int {
	id := a.next[category]
	a.next[category]++
	return id
}
