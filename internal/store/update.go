package store

import "strings"

// updateSet accumulates "column = ?" assignments for partial updates.
type updateSet struct {
	columns []string
	args    []any
}

func (u *updateSet) add(column string, value any) {
	u.columns = append(u.columns, column+" = ?")
	u.args = append(u.args, value)
}

func (u *updateSet) empty() bool {
	return len(u.columns) == 0
}

func (u *updateSet) clause() string {
	return strings.Join(u.columns, ", ")
}
