package mutable_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buzztrax/core/mutable"
)

// mutableMock used to set up test cases for mutators
type mutableMock struct {
	Mutability mutable.Context
	value      int
	operations int
	expected   int
}

// mutators closure to mutable.value
func (m *mutableMock) AddDelta(delta int) mutable.Mutation {
	return m.Mutability.Mutate(func() error {
		m.value += delta
		return nil
	})
}

func TestPutMutations(t *testing.T) {
	var tests = []struct {
		mocks []*mutableMock
	}{
		{
			mocks: []*mutableMock{
				{Mutability: mutable.Mutable(), operations: 1, expected: 10},
			},
		},
		{
			mocks: []*mutableMock{
				{Mutability: mutable.Mutable(), operations: 3, expected: 30},
				{Mutability: mutable.Mutable(), operations: 4, expected: 40},
			},
		},
	}

	for _, c := range tests {
		var mutations mutable.Mutations
		delta := 10
		for _, m := range c.mocks {
			for j := 0; j < m.operations; j++ {
				mutations = mutations.Put(m.AddDelta(delta))
			}
		}
		for _, m := range c.mocks {
			assert.NoError(t, mutations.ApplyTo(m.Mutability))
			assert.Equal(t, m.expected, m.value)
			assert.True(t, m.Mutability.IsMutable())
		}
		assert.Empty(t, mutations)
	}
}

func TestAppendAndDetachMutations(t *testing.T) {
	a := &mutableMock{Mutability: mutable.Mutable()}
	b := &mutableMock{Mutability: mutable.Mutable()}

	var mutations mutable.Mutations
	mutations = mutations.Append(mutable.Mutations{}.Put(a.AddDelta(1)))
	mutations = mutations.Append(mutable.Mutations{}.Put(a.AddDelta(2)))
	mutations = mutations.Put(b.AddDelta(5))

	d := mutations.Detach(a.Mutability)
	assert.NoError(t, mutations.ApplyTo(a.Mutability))
	assert.Equal(t, 0, a.value)
	assert.NoError(t, d.ApplyTo(a.Mutability))
	assert.Equal(t, 3, a.value)

	assert.NoError(t, mutations.ApplyTo(b.Mutability))
	assert.Equal(t, 5, b.value)
}

func TestApplyStopsOnError(t *testing.T) {
	ctx := mutable.Mutable()
	errMutation := errors.New("mutation failed")
	var applied int
	ms := mutable.Mutations{}.
		Put(ctx.Mutate(func() error { applied++; return nil })).
		Put(ctx.Mutate(func() error { return errMutation })).
		Put(ctx.Mutate(func() error { applied++; return nil }))
	assert.ErrorIs(t, ms.ApplyTo(ctx), errMutation)
	assert.Equal(t, 1, applied)
}

func TestMutability(t *testing.T) {
	assert.False(t, mutable.Immutable().IsMutable())
	assert.True(t, mutable.Mutable().IsMutable())
	assert.NotEqual(t, mutable.Mutable(), mutable.Mutable())
	assert.Panics(t, func() {
		mutable.Immutable().Mutate(func() error {
			return nil
		})
	})
	var ms mutable.Mutations
	assert.Nil(t, ms.Put(mutable.Mutation{}))
}

func TestInbox(t *testing.T) {
	m := &mutableMock{Mutability: mutable.Mutable()}
	var inbox mutable.Inbox
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inbox.Put(m.AddDelta(1))
		}()
	}
	wg.Wait()
	assert.NoError(t, inbox.Take().ApplyTo(m.Mutability))
	assert.Equal(t, 10, m.value)
	assert.Nil(t, inbox.Take())
}
