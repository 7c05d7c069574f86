package courseplanner_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwaidelich/umadb-go/dcb/memoryengine"
	"github.com/bwaidelich/umadb-go/example/courseplanner"
	"github.com/bwaidelich/umadb-go/example/courseplanner/core"
)

func Test_Planner_DefineCourse_RejectsDuplicateCourse(t *testing.T) {
	planner := courseplanner.NewPlanner(memoryengine.NewEventStore())
	ctx := context.Background()
	courseID := uuid.New()

	err := planner.DefineCourse(ctx, courseID, "Distributed Systems", 2)
	require.NoError(t, err)

	err = planner.DefineCourse(ctx, courseID, "Distributed Systems, again", 5)
	assert.ErrorIs(t, err, courseplanner.ErrCourseAlreadyDefined)
}

func Test_Planner_SubscribeStudent_HappyPath(t *testing.T) {
	planner := courseplanner.NewPlanner(memoryengine.NewEventStore())
	ctx := context.Background()
	courseID := uuid.New()
	studentID := uuid.New()

	require.NoError(t, planner.DefineCourse(ctx, courseID, "Event Modeling", 2))
	require.NoError(t, planner.RegisterStudent(ctx, studentID, "Ada"))

	outcome, err := planner.SubscribeStudent(ctx, studentID, courseID)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSubscribed, outcome)
}

func Test_Planner_SubscribeStudent_RejectsUnknownCourse(t *testing.T) {
	planner := courseplanner.NewPlanner(memoryengine.NewEventStore())
	ctx := context.Background()
	studentID := uuid.New()

	require.NoError(t, planner.RegisterStudent(ctx, studentID, "Ada"))

	outcome, err := planner.SubscribeStudent(ctx, studentID, uuid.New())
	assert.ErrorIs(t, err, courseplanner.ErrSubscriptionRejected)
	assert.Equal(t, core.OutcomeCourseMissing, outcome)
}

func Test_Planner_SubscribeStudent_RejectsDuplicateSubscription(t *testing.T) {
	planner := courseplanner.NewPlanner(memoryengine.NewEventStore())
	ctx := context.Background()
	courseID := uuid.New()
	studentID := uuid.New()

	require.NoError(t, planner.DefineCourse(ctx, courseID, "Event Modeling", 2))
	require.NoError(t, planner.RegisterStudent(ctx, studentID, "Ada"))

	_, err := planner.SubscribeStudent(ctx, studentID, courseID)
	require.NoError(t, err)

	outcome, err := planner.SubscribeStudent(ctx, studentID, courseID)
	assert.ErrorIs(t, err, courseplanner.ErrSubscriptionRejected)
	assert.Equal(t, core.OutcomeAlreadySubscribed, outcome)
}

func Test_Planner_SubscribeStudent_EnforcesCourseCapacity(t *testing.T) {
	planner := courseplanner.NewPlanner(memoryengine.NewEventStore())
	ctx := context.Background()
	courseID := uuid.New()

	require.NoError(t, planner.DefineCourse(ctx, courseID, "Popular Course", 2))

	students := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, studentID := range students {
		require.NoError(t, planner.RegisterStudent(ctx, studentID, fmt.Sprintf("Student %d", i)))
	}

	for _, studentID := range students[:2] {
		outcome, err := planner.SubscribeStudent(ctx, studentID, courseID)
		require.NoError(t, err)
		require.Equal(t, core.OutcomeSubscribed, outcome)
	}

	outcome, err := planner.SubscribeStudent(ctx, students[2], courseID)
	assert.ErrorIs(t, err, courseplanner.ErrSubscriptionRejected)
	assert.Equal(t, core.OutcomeCourseFull, outcome)
}

func Test_Planner_SubscribeStudent_CapacityIncreaseFreesSeats(t *testing.T) {
	planner := courseplanner.NewPlanner(memoryengine.NewEventStore())
	ctx := context.Background()
	courseID := uuid.New()

	require.NoError(t, planner.DefineCourse(ctx, courseID, "Growing Course", 1))

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, planner.RegisterStudent(ctx, first, "First"))
	require.NoError(t, planner.RegisterStudent(ctx, second, "Second"))

	_, err := planner.SubscribeStudent(ctx, first, courseID)
	require.NoError(t, err)

	outcome, err := planner.SubscribeStudent(ctx, second, courseID)
	require.ErrorIs(t, err, courseplanner.ErrSubscriptionRejected)
	require.Equal(t, core.OutcomeCourseFull, outcome)

	require.NoError(t, planner.ChangeCourseCapacity(ctx, courseID, 2))

	outcome, err = planner.SubscribeStudent(ctx, second, courseID)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSubscribed, outcome)
}

func Test_Planner_SubscribeStudent_EnforcesStudentSubscriptionLimit(t *testing.T) {
	planner := courseplanner.NewPlanner(memoryengine.NewEventStore())
	ctx := context.Background()
	studentID := uuid.New()

	require.NoError(t, planner.RegisterStudent(ctx, studentID, "Busy Student"))

	for i := 0; i < core.MaxSubscriptionsPerStudent; i++ {
		courseID := uuid.New()
		require.NoError(t, planner.DefineCourse(ctx, courseID, fmt.Sprintf("Course %d", i), 100))

		outcome, err := planner.SubscribeStudent(ctx, studentID, courseID)
		require.NoError(t, err)
		require.Equal(t, core.OutcomeSubscribed, outcome)
	}

	oneTooMany := uuid.New()
	require.NoError(t, planner.DefineCourse(ctx, oneTooMany, "One Too Many", 100))

	outcome, err := planner.SubscribeStudent(ctx, studentID, oneTooMany)
	assert.ErrorIs(t, err, courseplanner.ErrSubscriptionRejected)
	assert.Equal(t, core.OutcomeLimitReached, outcome)
}
