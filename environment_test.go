package scrapedash

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type EnvironmentSuite struct {
	env *envState
	suite.Suite
}

func TestEnvironmentSuite(t *testing.T) {
	assert.Implements(t, (*Environment)(nil), &envState{})

	suite.Run(t, new(EnvironmentSuite))
}

func (s *EnvironmentSuite) SetupTest() {
	s.env = &envState{
		ctx:      context.Background(),
		settings: &Settings{},
		closers:  map[string]func(context.Context) error{},
	}
}

func (s *EnvironmentSuite) TestRejectsInvalidSettings() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewEnvironmentFromSettings(ctx, nil)
	s.Error(err)

	_, err = NewEnvironmentFromSettings(ctx, &Settings{})
	s.Error(err)
}

func (s *EnvironmentSuite) TestCloseRunsEveryCloser() {
	var ran []string
	done := make(chan string, 2)
	s.env.RegisterCloser("one", func(context.Context) error {
		done <- "one"
		return nil
	})
	s.env.RegisterCloser("two", func(context.Context) error {
		done <- "two"
		return errors.New("two failed")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.env.Close(ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "two failed")

	close(done)
	for name := range done {
		ran = append(ran, name)
	}
	s.ElementsMatch([]string{"one", "two"}, ran)
}

func (s *EnvironmentSuite) TestContextIsDerivedFromRoot() {
	root, cancelRoot := context.WithCancel(context.Background())
	s.env.ctx = root

	ctx, cancel := s.env.Context()
	defer cancel()
	cancelRoot()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		s.Fail("derived context was not canceled")
	}
}

func (s *EnvironmentSuite) TestGlobalEnvironment() {
	prev := GetEnvironment()
	defer SetEnvironment(prev)

	SetEnvironment(s.env)
	s.Equal(s.env, GetEnvironment())
}

func (s *EnvironmentSuite) TestConnectsWithTestSettings() {
	if os.Getenv("SCRAPEDASH_SKIP_DB_TESTS") != "" {
		s.T().Skip("database tests are disabled")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings, err := NewSettings(testConfigFile())
	s.Require().NoError(err)
	env, err := NewEnvironmentFromSettings(ctx, settings)
	s.Require().NoError(err)

	s.NotNil(env.Client())
	s.Equal("scrapedash_test", env.DB().Name())
	s.True(env.LocalQueue().Info().Started)
	s.NoError(env.Close(ctx))
}
