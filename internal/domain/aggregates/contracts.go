package aggregates

// LockRootCourse is the row every training aggregate locks before reading or writing
// anything else in a course.
const LockRootCourse = "course"

// Contract records what an aggregate owns: the row it locks first and the tables it may
// write. Writes to these tables from outside the aggregate bypass the completion cascade.
type Contract struct {
	Name     string
	LockRoot string
	Writes   []string
	Notes    string
}

type Aggregate interface {
	Contract() Contract
}

// OwnsTable reports whether table is written by the aggregate.
func (c Contract) OwnsTable(table string) bool {
	for _, t := range c.Writes {
		if t == table {
			return true
		}
	}
	return false
}

// Contracts lists the training aggregates in lock-acquisition order.
func Contracts() []Contract {
	return []Contract{LifecycleAggregateContract, EnrollmentAggregateContract, ProgressionAggregateContract}
}
