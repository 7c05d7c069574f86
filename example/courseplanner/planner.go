// Package courseplanner is a small example application on top of the dcb
// event store. It shows how cross-entity rules are enforced with append
// conditions: each command reads the events its decision depends on,
// decides on the folded state, and appends with a condition that fails
// when a relevant event slipped in between.
package courseplanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/bwaidelich/umadb-go/dcb"
	"github.com/bwaidelich/umadb-go/example/courseplanner/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrCourseAlreadyDefined is returned when a course id is defined twice.
var ErrCourseAlreadyDefined = errors.New("course already defined")

// ErrStudentAlreadyRegistered is returned when a student id is registered twice.
var ErrStudentAlreadyRegistered = errors.New("student already registered")

// ErrSubscriptionRejected wraps the outcome of a rejected subscription.
var ErrSubscriptionRejected = errors.New("subscription rejected")

// Planner executes course planner commands against an event store.
type Planner struct {
	store dcb.EventStore
}

// NewPlanner creates a Planner on the given store.
func NewPlanner(store dcb.EventStore) *Planner {
	return &Planner{store: store}
}

func courseTag(courseID uuid.UUID) dcb.TagString {
	return dcb.TagString("course:" + courseID.String())
}

func studentTag(studentID uuid.UUID) dcb.TagString {
	return dcb.TagString("student:" + studentID.String())
}

// DefineCourse creates a course; defining the same course id twice fails.
func (p *Planner) DefineCourse(ctx context.Context, courseID uuid.UUID, title string, capacity int) error {
	data, marshalErr := json.Marshal(core.CourseDefined{CourseID: courseID, Title: title, Capacity: capacity})
	if marshalErr != nil {
		return marshalErr
	}

	event := dcb.BuildEvent(core.CourseDefinedEventType, data, courseTag(courseID))

	guard := dcb.NewQuery(
		dcb.NewQueryItem([]dcb.EventTypeString{core.CourseDefinedEventType}, []dcb.TagString{courseTag(courseID)}),
	)
	condition := dcb.BuildAppendCondition(guard)

	_, appendErr := p.store.Append(ctx, dcb.Events{event}, condition)
	if errors.Is(appendErr, dcb.ErrAppendConditionViolated) {
		return fmt.Errorf("%w: %s", ErrCourseAlreadyDefined, courseID)
	}

	return appendErr
}

// RegisterStudent creates a student; registering the same id twice fails.
func (p *Planner) RegisterStudent(ctx context.Context, studentID uuid.UUID, name string) error {
	data, marshalErr := json.Marshal(core.StudentRegistered{StudentID: studentID, Name: name})
	if marshalErr != nil {
		return marshalErr
	}

	event := dcb.BuildEvent(core.StudentRegisteredEventType, data, studentTag(studentID))

	guard := dcb.NewQuery(
		dcb.NewQueryItem([]dcb.EventTypeString{core.StudentRegisteredEventType}, []dcb.TagString{studentTag(studentID)}),
	)
	condition := dcb.BuildAppendCondition(guard)

	_, appendErr := p.store.Append(ctx, dcb.Events{event}, condition)
	if errors.Is(appendErr, dcb.ErrAppendConditionViolated) {
		return fmt.Errorf("%w: %s", ErrStudentAlreadyRegistered, studentID)
	}

	return appendErr
}

// ChangeCourseCapacity updates the seat capacity of a course.
func (p *Planner) ChangeCourseCapacity(ctx context.Context, courseID uuid.UUID, capacity int) error {
	data, marshalErr := json.Marshal(core.CourseCapacityChanged{CourseID: courseID, Capacity: capacity})
	if marshalErr != nil {
		return marshalErr
	}

	event := dcb.BuildEvent(core.CourseCapacityChangedType, data, courseTag(courseID))

	_, appendErr := p.store.Append(ctx, dcb.Events{event}, nil)

	return appendErr
}

// SubscribeStudent subscribes a student to a course, enforcing course
// capacity, the per-student subscription limit, and uniqueness of the
// subscription. The decision's consistency boundary is exactly the set of
// events the decision query matches, not a single aggregate.
func (p *Planner) SubscribeStudent(ctx context.Context, studentID, courseID uuid.UUID) (core.SubscriptionOutcome, error) {
	decisionQuery := p.buildSubscriptionQuery(studentID, courseID)

	events, readErr := p.readAll(ctx, decisionQuery)
	if readErr != nil {
		return "", readErr
	}

	course, student, lastPosition, foldErr := p.fold(events, studentID, courseID)
	if foldErr != nil {
		return "", foldErr
	}

	outcome := core.DecideSubscription(course, student)
	if outcome != core.OutcomeSubscribed {
		return outcome, fmt.Errorf("%w: %s", ErrSubscriptionRejected, outcome)
	}

	data, marshalErr := json.Marshal(core.StudentSubscribed{StudentID: studentID, CourseID: courseID})
	if marshalErr != nil {
		return "", marshalErr
	}

	event := dcb.BuildEvent(core.StudentSubscribedEventType, data, courseTag(courseID), studentTag(studentID))

	condition := dcb.BuildAppendConditionAfter(decisionQuery, lastPosition)
	if lastPosition == 0 {
		condition = dcb.BuildAppendCondition(decisionQuery)
	}

	if _, appendErr := p.store.Append(ctx, dcb.Events{event}, condition); appendErr != nil {
		return "", appendErr
	}

	return core.OutcomeSubscribed, nil
}

// buildSubscriptionQuery matches every event a subscription decision
// depends on: the course's definition and capacity changes, the course's
// subscriptions, the student's registration, and the student's
// subscriptions across all courses.
func (p *Planner) buildSubscriptionQuery(studentID, courseID uuid.UUID) dcb.Query {
	return dcb.BuildQuery().
		Matching().
		AnyEventTypeOf(
			core.CourseDefinedEventType,
			core.CourseCapacityChangedType,
			core.StudentSubscribedEventType,
			core.StudentUnsubscribedType,
		).
		AndAllTagsOf(courseTag(courseID)).
		OrMatching().
		AnyEventTypeOf(
			core.StudentRegisteredEventType,
			core.StudentSubscribedEventType,
			core.StudentUnsubscribedType,
		).
		AndAllTagsOf(studentTag(studentID)).
		Finalize()
}

func (p *Planner) readAll(ctx context.Context, query dcb.Query) ([]dcb.SequencedEvent, error) {
	cursor, readErr := p.store.Read(ctx, query)
	if readErr != nil {
		return nil, readErr
	}

	return dcb.ReadAll(cursor)
}

// fold projects the decision states from the matched history and returns
// the position of the last matched event, the reference point for the
// append condition.
func (p *Planner) fold(
	events []dcb.SequencedEvent,
	studentID, courseID uuid.UUID,
) (core.CourseState, core.StudentState, dcb.Position, error) {
	var course core.CourseState
	var student core.StudentState
	var lastPosition dcb.Position

	courseTagValue := courseTag(courseID)
	studentTagValue := studentTag(studentID)

	for _, sequenced := range events {
		lastPosition = sequenced.Position

		hasCourseTag := hasTag(sequenced.Event, courseTagValue)
		hasStudentTag := hasTag(sequenced.Event, studentTagValue)

		switch sequenced.Event.EventType {
		case core.CourseDefinedEventType:
			var defined core.CourseDefined
			if err := json.Unmarshal(sequenced.Event.Data, &defined); err != nil {
				return course, student, 0, err
			}
			course.Exists = true
			course.Capacity = defined.Capacity

		case core.CourseCapacityChangedType:
			var changed core.CourseCapacityChanged
			if err := json.Unmarshal(sequenced.Event.Data, &changed); err != nil {
				return course, student, 0, err
			}
			course.Capacity = changed.Capacity

		case core.StudentRegisteredEventType:
			student.Exists = true

		case core.StudentSubscribedEventType:
			if hasCourseTag {
				course.SeatsTaken++
			}
			if hasStudentTag {
				student.Subscriptions++
			}
			if hasCourseTag && hasStudentTag {
				course.IsSubscribed = true
			}

		case core.StudentUnsubscribedType:
			if hasCourseTag {
				course.SeatsTaken--
			}
			if hasStudentTag {
				student.Subscriptions--
			}
			if hasCourseTag && hasStudentTag {
				course.IsSubscribed = false
			}
		}
	}

	return course, student, lastPosition, nil
}

func hasTag(event dcb.Event, tag dcb.TagString) bool {
	for _, candidate := range event.Tags {
		if candidate == tag {
			return true
		}
	}

	return false
}
