package orders

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
	StatusRefunded Status = "REFUNDED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusPaid: true, StatusCanceled: true},
	StatusPaid:     {StatusRefunded: true},
	StatusCanceled: {},
	StatusRefunded: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no transition may ever leave s.
func Terminal(s Status) bool {
	return len(validNext[s]) == 0
}

func Valid(s Status) bool {
	_, ok := validNext[s]
	return ok
}
