package ptt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeGPIOLine struct {
	value  int
	closed bool
}

func (f *fakeGPIOLine) SetValue(v int) error {
	f.value = v
	return nil
}

func (f *fakeGPIOLine) Close() error {
	f.closed = true
	return nil
}

func TestGPIOKeyerActivate(t *testing.T) {
	fake := &fakeGPIOLine{}
	k := &GPIOKeyer{line: fake, invert: false}

	assert.NoError(t, k.Key(context.Background()))
	assert.Equal(t, 1, fake.value)

	assert.NoError(t, k.Unkey(context.Background()))
	assert.Equal(t, 0, fake.value)
}

func TestGPIOKeyerInvert(t *testing.T) {
	fake := &fakeGPIOLine{}
	k := &GPIOKeyer{line: fake, invert: true}

	assert.NoError(t, k.Key(context.Background()))
	assert.Equal(t, 0, fake.value, "inverted line should be low when PTT is active")

	assert.NoError(t, k.Unkey(context.Background()))
	assert.Equal(t, 1, fake.value, "inverted line should be high when PTT is inactive")
}

func TestGPIOKeyerClose(t *testing.T) {
	fake := &fakeGPIOLine{}
	k := &GPIOKeyer{line: fake}

	assert.NoError(t, k.Close())
	assert.True(t, fake.closed)
}
