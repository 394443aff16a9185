package models

// Collection is an ordered multi-map of string keys to one or more string values.
// Keys keep the order in which they first appeared; values for a key keep insertion order.
type Collection struct {
	keys   []string
	values map[string][]string
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{values: make(map[string][]string)}
}

// Add appends value under key, creating the key if it is new.
func (c *Collection) Add(key, value string) {
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = append(c.values[key], value)
}

// AddKey registers key without a value. Used when decoding an item that carries no values.
func (c *Collection) AddKey(key string) {
	if _, exists := c.values[key]; exists {
		return
	}
	c.keys = append(c.keys, key)
	c.values[key] = nil
}

// Keys returns the distinct keys in order of first appearance.
func (c *Collection) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Values returns the values stored under key.
func (c *Collection) Values(key string) []string {
	if c == nil {
		return nil
	}
	vals := c.values[key]
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// Get returns the first value for key, or "" when absent.
func (c *Collection) Get(key string) string {
	if c == nil {
		return ""
	}
	if vals := c.values[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Has reports whether key is present.
func (c *Collection) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.values[key]
	return ok
}

// Len returns the number of distinct keys.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Empty reports whether the collection holds no keys.
func (c *Collection) Empty() bool {
	return c == nil || len(c.keys) == 0
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	out := NewCollection()
	if c == nil {
		return out
	}
	for _, k := range c.keys {
		out.keys = append(out.keys, k)
		vals := c.values[k]
		if vals == nil {
			out.values[k] = nil
			continue
		}
		cp := make([]string, len(vals))
		copy(cp, vals)
		out.values[k] = cp
	}
	return out
}

// Equal compares keys, key order and values.
func (c *Collection) Equal(other *Collection) bool {
	if c.Empty() || other.Empty() {
		return c.Empty() && other.Empty()
	}
	if len(c.keys) != len(other.keys) {
		return false
	}
	for i, k := range c.keys {
		if other.keys[i] != k {
			return false
		}
		a, b := c.values[k], other.values[k]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}
