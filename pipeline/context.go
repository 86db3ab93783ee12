package pipeline

// Values is a read-only bag of configuration values.
type Values map[string]interface{}

// Get returns the value for given key. The second return value is false when
// the key is missing.
func (v Values) Get(key string) (interface{}, bool) {
	val, ok := v[key]
	return val, ok
}

// String returns the value for given key as a string.
// Missing keys and non-string values yield an empty string.
func (v Values) String(key string) string {
	if val, ok := v[key].(string); ok {
		return val
	}

	return ""
}

func (v Values) copy() Values {
	cp := make(Values, len(v))
	for key, val := range v {
		cp[key] = val
	}

	return cp
}

// Context carries per-message metadata through the chain.
//
// A fresh Context is created for every call to Pipeline.Process and
// discarded when the chain returns. It is never shared between concurrently
// processed messages.
type Context struct {
	// CorrelationID identifies one message's trip through the chain in logs.
	CorrelationID string

	global    Values
	overrides map[string]Values
}

// Global returns a shared configuration value visible to all stages.
func (c *Context) Global(key string) (interface{}, bool) {
	return c.global.Get(key)
}

// StageOverrides returns the option bag for the given stage name.
//
// The returned bag is a copy: a stage may read its own slice of the
// configuration but can never mutate another stage's.
func (c *Context) StageOverrides(stage string) Values {
	overrides, ok := c.overrides[stage]
	if !ok {
		return Values{}
	}

	return overrides.copy()
}
