package trace_test

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangoma/wat/trace"
)

type rw struct {
	r bytes.Buffer
	w bytes.Buffer
}

func (m *rw) Read(p []byte) (int, error) {
	return m.r.Read(p)
}

func (m *rw) Write(p []byte) (int, error) {
	return m.w.Write(p)
}

func TestRead(t *testing.T) {
	m := &rw{}
	m.r.WriteString("OK\r\n")
	var logs bytes.Buffer
	tr := trace.New(m, trace.WithLogger(log.New(&logs, "", 0)))

	buf := make([]byte, 16)
	n, err := tr.Read(buf)
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "r: \"OK\\r\\n\"\n", logs.String())
}

func TestWrite(t *testing.T) {
	m := &rw{}
	var logs bytes.Buffer
	tr := trace.New(m, trace.WithLogger(log.New(&logs, "", 0)))

	n, err := tr.Write([]byte("ATD123;\r\n"))
	require.Nil(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "ATD123;\r\n", m.w.String())
	assert.Equal(t, "w: \"ATD123;\\r\\n\"\n", logs.String())
}

func TestFormats(t *testing.T) {
	m := &rw{}
	m.r.WriteString("x")
	var logs bytes.Buffer
	tr := trace.New(m, trace.WithLogger(log.New(&logs, "", 0)),
		trace.ReadFormat("<- %q"), trace.WriteFormat("-> %q"))

	buf := make([]byte, 1)
	_, err := tr.Read(buf)
	require.Nil(t, err)
	_, err = tr.Write([]byte("y"))
	require.Nil(t, err)
	assert.Equal(t, "<- \"x\"\n-> \"y\"\n", logs.String())
}
