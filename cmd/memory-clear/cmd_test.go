package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/habiliai/memoryd/embedding"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/internal/mytesting"
	"github.com/habiliai/memoryd/memory"
	"github.com/habiliai/memoryd/record"
	"github.com/habiliai/memoryd/store"
	"github.com/stretchr/testify/suite"
)

type ClearTestSuite struct {
	mytesting.Suite

	adapter *store.Adapter
	svc     *memory.Service
}

func (s *ClearTestSuite) SetupTest() {
	s.Suite.SetupTest()

	embedder := embedding.NewLocalEmbedder(128)
	s.adapter = store.NewAdapter(
		store.NewMemoryVectorStore(embedder.Dimensions()),
		store.WithGraph(store.NewMemoryGraphStore(), store.RuleGraphExtractor{}),
	)
	s.svc = memory.NewService(s.adapter, embedder, memory.WithClock(mytesting.Clock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), 0)))

	for _, user := range []string{"alice", "bob"} {
		for _, text := range []string{"Lives in Seattle", "Works at Acme"} {
			_, _, err := s.svc.Add(s, memory.AddRequest{UserID: user, Namespace: record.ProfileBio, Text: text})
			s.Require().NoError(err)
		}
	}
}

func (s *ClearTestSuite) count(userID string) int {
	records, err := s.svc.List(s, memory.ListOptions{UserID: userID})
	s.Require().NoError(err)
	return len(records)
}

func (s *ClearTestSuite) TestDeclinedPromptKeepsEverything() {
	for _, answer := range []string{"n\n", "\n", "nope\n", ""} {
		var out bytes.Buffer
		err := clearMemories(s, s.adapter, mylog.Discard(), clearOptions{}, strings.NewReader(answer), &out)
		s.ErrorIs(err, errAborted, "answer %q", answer)
		s.Contains(out.String(), "ALL users")
	}
	s.Equal(4, s.count(""))
}

func (s *ClearTestSuite) TestConfirmedWipeOfOneUser() {
	var out bytes.Buffer
	err := clearMemories(s, s.adapter, mylog.Discard(), clearOptions{UserID: "alice"}, strings.NewReader("YES\n"), &out)
	s.Require().NoError(err)

	s.Contains(out.String(), "deleted 2 memories")
	s.Contains(out.String(), "remaining memories: 0")
	s.Contains(out.String(), "remaining relations: 0")
	s.Equal(0, s.count("alice"))
	s.Equal(2, s.count("bob"))

	relations, err := s.adapter.Relations(s, "bob")
	s.Require().NoError(err)
	s.NotEmpty(relations)
}

func (s *ClearTestSuite) TestYesSkipsPrompt() {
	var out bytes.Buffer
	err := clearMemories(s, s.adapter, mylog.Discard(), clearOptions{Yes: true}, strings.NewReader(""), &out)
	s.Require().NoError(err)

	s.NotContains(out.String(), "Continue?")
	s.Equal(0, s.count(""))
}

func TestClear(t *testing.T) {
	suite.Run(t, new(ClearTestSuite))
}
