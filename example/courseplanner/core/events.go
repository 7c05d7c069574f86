// Package core holds the pure domain of the course planner example:
// event definitions and the decision functions that enforce the
// business rules over an event history.
//
// The course planner is the canonical consistency-boundary example. A
// student may subscribe to a course only while the course has free
// capacity and the student is below their subscription limit. Neither
// rule lives in a single aggregate: capacity spans all subscriptions of
// a course, the limit spans all subscriptions of a student. The handlers
// in the parent package express each rule as a query plus an append
// condition instead.
package core

import "github.com/google/uuid"

// Event type identifiers used in the store.
const (
	CourseDefinedEventType      = "CourseDefined"
	CourseCapacityChangedType   = "CourseCapacityChanged"
	StudentRegisteredEventType  = "StudentRegistered"
	StudentSubscribedEventType  = "StudentSubscribedToCourse"
	StudentUnsubscribedType     = "StudentUnsubscribedFromCourse"
)

// MaxSubscriptionsPerStudent bounds how many courses one student may
// subscribe to at the same time.
const MaxSubscriptionsPerStudent = 10

// CourseDefined records the creation of a course with its seat capacity.
type CourseDefined struct {
	CourseID uuid.UUID
	Title    string
	Capacity int
}

// CourseCapacityChanged records an update of a course's seat capacity.
type CourseCapacityChanged struct {
	CourseID uuid.UUID
	Capacity int
}

// StudentRegistered records a new student.
type StudentRegistered struct {
	StudentID uuid.UUID
	Name      string
}

// StudentSubscribed records a student taking a seat in a course.
type StudentSubscribed struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
}

// StudentUnsubscribed records a student releasing their seat in a course.
type StudentUnsubscribed struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
}
