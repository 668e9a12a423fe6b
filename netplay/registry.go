package netplay

type handleKind uint8

const (
	kindSender handleKind = iota + 1
	kindReceiver
)

// Handle 会话注册表中的句柄（下标 + 代数）；玩家销毁时用它注销，过期句柄不会误删新条目
type Handle struct {
	kind  handleKind
	index int
	gen   uint32
}

// Valid 零值句柄无效
func (h Handle) Valid() bool { return h.kind != 0 }

type slot[T any] struct {
	id   PlayerID
	item T
	gen  uint32
	used bool
}

// registry 会话持有的槽位表，按玩家编号索引
type registry[T any] struct {
	slots []slot[T]
	free  []int
	byID  map[PlayerID]int
	// order 按注册先后排列的槽位下标（槽位复用不改变遍历顺序）
	order []int
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{byID: make(map[PlayerID]int)}
}

func (r *registry[T]) add(id PlayerID, item T) (int, uint32, error) {
	if !id.Valid() {
		return 0, 0, ErrInvalidPlayer
	}
	if _, ok := r.byID[id]; ok {
		return 0, 0, ErrDuplicatePlayer
	}
	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{})
		idx = len(r.slots) - 1
	}
	s := &r.slots[idx]
	s.id, s.item, s.used = id, item, true
	r.byID[id] = idx
	r.order = append(r.order, idx)
	return idx, s.gen, nil
}

func (r *registry[T]) remove(idx int, gen uint32) bool {
	if idx < 0 || idx >= len(r.slots) {
		return false
	}
	s := &r.slots[idx]
	if !s.used || s.gen != gen {
		return false
	}
	delete(r.byID, s.id)
	var zero T
	s.item, s.used, s.id = zero, false, 0
	s.gen++
	r.free = append(r.free, idx)
	for i, o := range r.order {
		if o == idx {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *registry[T]) lookup(id PlayerID) (T, bool) {
	idx, ok := r.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return r.slots[idx].item, true
}

func (r *registry[T]) each(fn func(id PlayerID, item T)) {
	for _, idx := range r.order {
		fn(r.slots[idx].id, r.slots[idx].item)
	}
}

func (r *registry[T]) len() int { return len(r.byID) }
