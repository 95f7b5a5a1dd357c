package valueobject

import (
	"fmt"
	"strings"
)

// Direction задает, в какую сторону значение метрики считается хорошим
type Direction string

const (
	LessThanIsGood    Direction = "less_than_is_good"
	GreaterThanIsGood Direction = "greater_than_is_good"
)

func (d Direction) String() string {
	return string(d)
}

// ParseDirection принимает как канонические имена, так и короткие формы "lt"/"gt"
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "less_than_is_good", "lessthanisgood", "lt", "<":
		return LessThanIsGood, nil
	case "greater_than_is_good", "greaterthanisgood", "gt", ">":
		return GreaterThanIsGood, nil
	default:
		return "", fmt.Errorf("unknown threshold direction %q", raw)
	}
}
