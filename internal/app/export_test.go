package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	h := newHarness(t, CreateConfig{})
	alice := h.join("Alice")
	bob := h.join("Bob, Jr.")
	require.True(t, h.s.Start(hostConn))
	require.True(t, h.s.Answer(alice, h.correct()))
	require.True(t, h.s.Answer(bob, h.wrong()))
	require.True(t, h.s.Next(hostConn))
	require.True(t, h.s.Answer(bob, h.correct()))
	require.True(t, h.s.EndQuestion(hostConn))

	var out strings.Builder
	require.NoError(t, h.s.WriteCSV(&out))
	want := "nickname,score,streak,Q1,Q2,Q3\n" +
		"Alice,120,1,1,NA,NA\n" +
		"\"Bob, Jr.\",120,1,0,1,NA\n"
	assert.Equal(t, want, out.String())
}

func TestWriteCSVBeforeStart(t *testing.T) {
	h := newHarness(t, CreateConfig{Set: testSet(2)})
	var out strings.Builder
	require.NoError(t, h.s.WriteCSV(&out))
	assert.Equal(t, "nickname,score,streak,Q1,Q2\n", out.String())
}

func TestWriteCSVNeutralizesFormulas(t *testing.T) {
	h := newHarness(t, CreateConfig{Set: testSet(1)})
	h.join("=1+2")
	h.join("@SUM(A1)")
	h.join("-Dash")
	h.join("Plain+")

	var out strings.Builder
	require.NoError(t, h.s.WriteCSV(&out))
	want := "nickname,score,streak,Q1\n" +
		"'=1+2,0,0,NA\n" +
		"'@SUM(A1),0,0,NA\n" +
		"'-Dash,0,0,NA\n" +
		"Plain+,0,0,NA\n"
	assert.Equal(t, want, out.String())
}
