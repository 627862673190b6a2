package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dmoura/tripgraph/types"
)

func TestApply_AppendsMessagesInOrder(t *testing.T) {
	st := NewState("t1")
	st.Apply(Patch{Messages: []types.Message{
		types.NewUserMessage("a"),
		types.NewAssistantMessage("b"),
	}})
	st.Apply(Patch{Messages: []types.Message{types.NewUserMessage("c")}})

	require.Len(t, st.Messages, 3)
	assert.Equal(t, "a", st.Messages[0].Content)
	assert.Equal(t, "b", st.Messages[1].Content)
	assert.Equal(t, "c", st.Messages[2].Content)
}

func TestApply_RouteOverwriteOnlyWhenSet(t *testing.T) {
	st := NewState("t1")
	st.Route = RouteSupervisor

	st.Apply(Patch{Messages: []types.Message{types.NewUserMessage("x")}})
	assert.Equal(t, RouteSupervisor, st.Route)

	st.Apply(Patch{Route: RouteFlightSearcher})
	assert.Equal(t, RouteFlightSearcher, st.Route)
}

func TestApply_StackPushPop(t *testing.T) {
	st := NewState("t1")
	assert.Equal(t, Specialist(""), st.StackTop())

	st.Apply(Patch{Stack: StackPush, Push: SpecialistFlight})
	assert.Equal(t, SpecialistFlight, st.StackTop())

	st.Apply(Patch{Stack: StackPush, Push: SpecialistTourism})
	assert.Equal(t, SpecialistTourism, st.StackTop())

	st.Apply(Patch{Stack: StackPop})
	assert.Equal(t, SpecialistFlight, st.StackTop())

	st.Apply(Patch{Stack: StackPop})
	assert.Equal(t, Specialist(""), st.StackTop())

	// Popping an empty stack is a no-op, not a panic.
	st.Apply(Patch{Stack: StackPop})
	assert.Empty(t, st.DialogStack)
}

// Pushing a specialist and popping must restore exactly the stack that
// existed before the push, for any interleaving.
func TestStackDiscipline_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		st := NewState("prop")
		var model []Specialist

		ops := rapid.IntRange(1, 50).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "push") {
				s := rapid.SampledFrom([]Specialist{
					SpecialistFlight, SpecialistTourism,
				}).Draw(t, "specialist")

				before := append([]Specialist(nil), st.DialogStack...)
				st.Apply(Patch{Stack: StackPush, Push: s})
				if st.StackTop() != s {
					t.Fatalf("push did not set top: got %q", st.StackTop())
				}
				st.Apply(Patch{Stack: StackPop})
				if len(st.DialogStack) != len(before) {
					t.Fatalf("push+pop changed depth: %d != %d",
						len(st.DialogStack), len(before))
				}
				// Re-push to keep exploring deeper stacks.
				st.Apply(Patch{Stack: StackPush, Push: s})
				model = append(model, s)
			} else if len(model) > 0 {
				st.Apply(Patch{Stack: StackPop})
				model = model[:len(model)-1]
			}

			if len(st.DialogStack) != len(model) {
				t.Fatalf("stack drifted from model: %v vs %v", st.DialogStack, model)
			}
			for j := range model {
				if st.DialogStack[j] != model[j] {
					t.Fatalf("stack content drifted at %d", j)
				}
			}
		}
	})
}

func TestLastMessage(t *testing.T) {
	st := NewState("t1")
	assert.True(t, st.LastMessage().IsEmpty())

	st.Apply(Patch{Messages: []types.Message{types.NewUserMessage("hello")}})
	assert.Equal(t, "hello", st.LastMessage().Content)
}
