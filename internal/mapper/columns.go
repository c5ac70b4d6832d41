// Package mapper translates between client form shapes and stored rows.
// Forms use camelCase field names; rows and API responses use snake_case.
package mapper

// Column is one column/value pair of a partial update
type Column struct {
	Name  string
	Value interface{}
}

// Columns is an ordered set of column assignments
type Columns []Column

// Has reports whether the column is assigned
func (c Columns) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Get returns the value assigned to a column
func (c Columns) Get(name string) (interface{}, bool) {
	for _, col := range c {
		if col.Name == name {
			return col.Value, true
		}
	}
	return nil, false
}

// Set assigns a column, replacing any earlier assignment
func (c *Columns) Set(name string, value interface{}) {
	for i := range *c {
		if (*c)[i].Name == name {
			(*c)[i].Value = value
			return
		}
	}
	*c = append(*c, Column{Name: name, Value: value})
}

// Names returns the assigned column names in order
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

func addString(cols *Columns, name string, v *string) {
	if v != nil {
		cols.Set(name, *v)
	}
}

func addFloat(cols *Columns, name string, v *float64) {
	if v != nil {
		cols.Set(name, *v)
	}
}

func addBool(cols *Columns, name string, v *bool) {
	if v != nil {
		cols.Set(name, *v)
	}
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
