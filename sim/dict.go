package sim

import "sync"

// Dictionary is a simulated CoE object dictionary: values keyed by index and
// subindex, plus access flags.
type Dictionary struct {
	mu      sync.Mutex
	objects map[uint16]map[uint8][]byte
	ro      map[uint16]bool
}

// NewDictionary creates an empty object dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{
		objects: make(map[uint16]map[uint8][]byte),
		ro:      make(map[uint16]bool),
	}
}

// Set stores a value for index:subindex.
func (d *Dictionary) Set(index uint16, subindex uint8, value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.objects[index]
	if !ok {
		obj = make(map[uint8][]byte)
		d.objects[index] = obj
	}
	obj[subindex] = append([]byte(nil), value...)
}

// SetReadOnly marks a whole index as read only; writes to it are aborted.
func (d *Dictionary) SetReadOnly(index uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ro[index] = true
}

// Get returns the value stored for index:subindex.
func (d *Dictionary) Get(index uint16, subindex uint8) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.objects[index]
	if !ok {
		return nil, false
	}
	v, ok := obj[subindex]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// has reports whether the index exists at all.
func (d *Dictionary) has(index uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.objects[index]
	return ok
}

// readOnly reports whether the index is write protected.
func (d *Dictionary) readOnly(index uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ro[index]
}

// completeValue concatenates all subindices of an object starting at from, in
// subindex order, for complete-access transfers.
func (d *Dictionary) completeValue(index uint16, from uint8) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.objects[index]
	if !ok {
		return nil, false
	}

	var out []byte
	for sub := int(from); sub <= 255; sub++ {
		v, ok := obj[uint8(sub)]
		if !ok {
			break
		}
		out = append(out, v...)
	}
	return out, true
}
