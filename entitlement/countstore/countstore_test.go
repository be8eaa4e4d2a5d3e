package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "actions", "comment", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "actions", "comment"))
	assert.NoError(cs.Increment(ctx, "actions", "comment"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "actions", "comment", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	c, err = cs.GetCountDistinct(ctx, "acted", "items", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.IncrementDistinct(ctx, "acted", "items", "post-1"))
	assert.NoError(cs.IncrementDistinct(ctx, "acted", "items", "post-1"))
	assert.NoError(cs.IncrementDistinct(ctx, "acted", "items", "post-1"))
	c, err = cs.GetCountDistinct(ctx, "acted", "items", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c, "repeat values count once")

	assert.NoError(cs.IncrementDistinct(ctx, "acted", "items", "post-2"))
	assert.NoError(cs.IncrementDistinct(ctx, "acted", "items", "post-3"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCountDistinct(ctx, "acted", "items", period)
		assert.NoError(err)
		assert.Equal(3, c)
	}
}

func TestMemCountStoreDayRollover(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()
	day1 := time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)
	cs.now = func() time.Time { return day1 }

	assert.NoError(cs.Increment(ctx, "actions", "comment"))
	assert.NoError(cs.Increment(ctx, "actions", "comment"))

	cs.now = func() time.Time { return day1.Add(2 * time.Hour) }

	c, err := cs.GetCount(ctx, "actions", "comment", PeriodDay)
	assert.NoError(err)
	assert.Equal(0, c, "day bucket resets at the UTC boundary")

	c, err = cs.GetCount(ctx, "actions", "comment", PeriodTotal)
	assert.NoError(err)
	assert.Equal(2, c, "total carries across days")
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// interleave writers and readers; run with -race
	var wg sync.WaitGroup
	inc := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			assert.NoError(cs.IncrementDistinct(ctx, name, name, val))
			time.Sleep(time.Nanosecond)
		}
	}
	read := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			_, err := cs.GetCount(ctx, name, val, PeriodTotal)
			assert.NoError(err)
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(6)
	go inc("actions", "comment", 10)
	go inc("actions", "comment", 10)
	go read("actions", "comment", 10)
	go inc("actions", "reply", 6)
	go inc("actions", "reply", 6)
	go read("actions", "reply", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "actions", "comment", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "actions", "reply", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)

	c, err = cs.GetCountDistinct(ctx, "actions", "actions", PeriodTotal)
	assert.NoError(err)
	assert.Equal(2, c, "two distinct values were recorded")
}

func TestPeriodBucketShapes(t *testing.T) {
	assert := assert.New(t)

	at := time.Date(2024, 5, 10, 13, 45, 0, 0, time.UTC)
	assert.Equal("actions/comment", periodBucket("actions", "comment", PeriodTotal, at))
	assert.Equal("actions/comment/2024-05-10", periodBucket("actions", "comment", PeriodDay, at))
	assert.Equal("actions/comment/2024-05-10T13", periodBucket("actions", "comment", PeriodHour, at))
}
