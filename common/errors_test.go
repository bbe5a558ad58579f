package common

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSentinels(t *testing.T) {
	err := InvalidImage("image %d is empty", 2)
	assert.True(t, errors.Is(err, ErrInvalidImage))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "image 2 is empty: invalid image", err.Error())

	assert.True(t, errors.Is(ModelInvocation("bad shape"), ErrModelInvocation))
	assert.True(t, errors.Is(Configuration("bad threshold"), ErrConfiguration))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(ErrModelInvocation, nil))

	err := Classify(ErrModelInvocation, context.DeadlineExceeded)
	assert.True(t, errors.Is(err, ErrModelInvocation))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "the cause stays reachable")
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	assert.Equal(t, "model invocation failure: context deadline exceeded", err.Error())

	already := ModelInvocation("bad shape")
	assert.Equal(t, already, Classify(ErrModelInvocation, already), "classified errors are not wrapped twice")
}
