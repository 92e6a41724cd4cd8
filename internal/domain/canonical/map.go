package canonical

import "sort"

// ConfigurationMap aggregates type configurations keyed by canonical type
// name, with value (structural) equality semantics.
type ConfigurationMap struct {
	m map[string]*TypeConfiguration
}

// NewConfigurationMap creates an empty map.
func NewConfigurationMap() *ConfigurationMap {
	return &ConfigurationMap{m: map[string]*TypeConfiguration{}}
}

// Get returns the configuration for a type name.
func (cm *ConfigurationMap) Get(name string) (*TypeConfiguration, bool) {
	c, ok := cm.m[name]
	return c, ok
}

// Put stores a configuration and returns the previous value, if any.
func (cm *ConfigurationMap) Put(name string, cfg *TypeConfiguration) *TypeConfiguration {
	prev := cm.m[name]
	cm.m[name] = cfg
	return prev
}

// Remove deletes a configuration and returns it, if present.
func (cm *ConfigurationMap) Remove(name string) (*TypeConfiguration, bool) {
	c, ok := cm.m[name]
	if ok {
		delete(cm.m, name)
	}
	return c, ok
}

// ContainsKey reports whether a type name is present.
func (cm *ConfigurationMap) ContainsKey(name string) bool {
	_, ok := cm.m[name]
	return ok
}

// ContainsValue reports whether any stored configuration is structurally
// equal to the given one.
func (cm *ConfigurationMap) ContainsValue(cfg *TypeConfiguration) bool {
	for _, c := range cm.m {
		if c.Equal(cfg) {
			return true
		}
	}
	return false
}

// Keys returns the type names in sorted order.
func (cm *ConfigurationMap) Keys() []string {
	keys := make([]string, 0, len(cm.m))
	for k := range cm.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the configurations in key order.
func (cm *ConfigurationMap) Values() []*TypeConfiguration {
	keys := cm.Keys()
	values := make([]*TypeConfiguration, 0, len(keys))
	for _, k := range keys {
		values = append(values, cm.m[k])
	}
	return values
}

// PutAll copies every entry of other into this map.
func (cm *ConfigurationMap) PutAll(other *ConfigurationMap) {
	if other == nil {
		return
	}
	for k, v := range other.m {
		cm.m[k] = v
	}
}

// Len returns the number of entries.
func (cm *ConfigurationMap) Len() int { return len(cm.m) }

// Equal reports value equality: same keys, structurally equal values.
func (cm *ConfigurationMap) Equal(other *ConfigurationMap) bool {
	if cm == nil || other == nil {
		return cm == other
	}
	if len(cm.m) != len(other.m) {
		return false
	}
	for k, v := range cm.m {
		ov, ok := other.m[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
