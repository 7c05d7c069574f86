package core

// CourseState is the projection a subscription decision runs against,
// folded from the course's and the student's relevant events.
type CourseState struct {
	Exists       bool
	Capacity     int
	SeatsTaken   int
	IsSubscribed bool
}

// StudentState is the student side of a subscription decision.
type StudentState struct {
	Exists        bool
	Subscriptions int
}

// SubscriptionOutcome names the result of a subscription decision.
type SubscriptionOutcome string

const (
	OutcomeSubscribed        SubscriptionOutcome = "subscribed"
	OutcomeCourseMissing     SubscriptionOutcome = "course_missing"
	OutcomeStudentMissing    SubscriptionOutcome = "student_missing"
	OutcomeCourseFull        SubscriptionOutcome = "course_full"
	OutcomeLimitReached      SubscriptionOutcome = "subscription_limit_reached"
	OutcomeAlreadySubscribed SubscriptionOutcome = "already_subscribed"
)

// DecideSubscription applies the subscription rules to the projected
// states. It is pure: the handler folds the event history into the states
// and enforces the decision with an append condition.
func DecideSubscription(course CourseState, student StudentState) SubscriptionOutcome {
	switch {
	case !course.Exists:
		return OutcomeCourseMissing
	case !student.Exists:
		return OutcomeStudentMissing
	case course.IsSubscribed:
		return OutcomeAlreadySubscribed
	case course.SeatsTaken >= course.Capacity:
		return OutcomeCourseFull
	case student.Subscriptions >= MaxSubscriptionsPerStudent:
		return OutcomeLimitReached
	default:
		return OutcomeSubscribed
	}
}
