package valueobject

// Outcome результат одного вызова пробы
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

func (o Outcome) String() string {
	return string(o)
}
