package audit

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/house-heist/internal/game"
)

var t0 = time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)

func sampleEntries() []game.AuditEntry {
	target := game.GridCoord{X: 1, Y: 2}
	return []game.AuditEntry{
		{At: t0, Round: 1, Conn: 3, Player: "p1", Operation: "Login", Detail: "client-a"},
		{At: t0.Add(time.Second), Round: 1, Conn: 3, Player: "p1", Operation: "Steal", Detail: "Target house: h2 (1, 2)", Target: &target},
		{At: t0.Add(2 * time.Second), Round: 1, Conn: game.ServerConn, Player: "Server", Operation: "FinishRound"},
		{At: t0.Add(3 * time.Second), Round: 2, Conn: -2, Player: "p2", Operation: "StayAtHome", Target: &target},
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)
	j.now = func() time.Time { return t0 }
	for _, e := range sampleEntries() {
		require.NoError(t, j.Write(e))
	}
	require.NoError(t, j.Close())

	path := filepath.Join(dir, "audit-2024-05-01-13.jsonl.zst")
	got, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, "Steal", got[1].Operation)
	require.Equal(t, game.GridCoord{X: 1, Y: 2}, *got[1].Target)
	require.True(t, t0.Equal(got[0].At))
}

func TestJournalRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)
	now := t0
	j.now = func() time.Time { return now }

	entries := sampleEntries()
	require.NoError(t, j.Write(entries[0]))
	now = now.Add(time.Hour)
	require.NoError(t, j.Write(entries[1]))
	require.NoError(t, j.Close())

	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, files, 2)

	// Reopening the same hour appends a second frame.
	now = t0
	require.NoError(t, j.Write(entries[2]))
	require.NoError(t, j.Close())
	got, err := ReadJournal(filepath.Join(dir, "audit-2024-05-01-13.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestIndexQueries(t *testing.T) {
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "audit.db"), quietLogger())
	require.NoError(t, err)
	defer ix.Close()

	for _, e := range sampleEntries() {
		require.NoError(t, ix.Write(e))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	all, err := ix.Entries(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "Login", all[0].Operation)
	require.Equal(t, "StayAtHome", all[3].Operation)

	round1, err := ix.Entries(ctx, Query{Round: 1})
	require.NoError(t, err)
	require.Len(t, round1, 3)

	p1, err := ix.Entries(ctx, Query{Player: "p1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, p1, 1)
	require.Equal(t, "client-a", p1[0].Detail)
	require.Zero(t, ix.Dropped())
}

func TestIndexSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ix, err := OpenIndex(path, quietLogger())
	require.NoError(t, err)
	require.NoError(t, ix.Write(sampleEntries()[0]))
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Write(sampleEntries()[1]))
	require.NoError(t, ix.Close())

	ix, err = OpenIndex(path, quietLogger())
	require.NoError(t, err)
	defer ix.Close()
	got, err := ix.Entries(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntries()[:3]))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{
		"round,conn,player,time,operation,target,detail",
		"1,3,p1,13:04:05,Login,,client-a",
		`1,3,p1,13:04:06,Steal,"(1, 2)","Target house: h2 (1, 2)"`,
		"1,0,Server,13:04:07,FinishRound,,",
	}, lines)
}

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	ix, err := OpenIndex(filepath.Join(dir, "audit.db"), quietLogger())
	require.NoError(t, err)
	j := NewJournal(filepath.Join(dir, "journal"))
	r := NewRecorder(quietLogger(), WithJournal(j), WithIndex(ix))

	for _, e := range sampleEntries() {
		r.Record(e)
	}
	got, err := r.Entries(context.Background(), Query{Round: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, r.Close())

	files, err := os.ReadDir(filepath.Join(dir, "journal"))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestRecorderMemoryOnly(t *testing.T) {
	r := NewRecorder(quietLogger(), WithMemoryLimit(3))
	for _, e := range sampleEntries() {
		r.Record(e)
	}
	got, err := r.Entries(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "Steal", got[0].Operation)

	got, err = r.Entries(context.Background(), Query{Player: "p2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, r.Close())
}
