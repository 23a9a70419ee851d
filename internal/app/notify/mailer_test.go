package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/pkg/logger"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func capture(c *captured, err error) SendFunc {
	return func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
		return err
	}
}

func TestSendRequiresConfiguration(t *testing.T) {
	var c captured
	m := New(Config{Host: "smtp.example.com"}, logger.Discard(), WithSendFunc(capture(&c, nil)))
	err := m.Send(context.Background(), "s", "<p>x</p>")
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "EMAIL_USER")
	assert.Empty(t, c.addr)
}

func TestProjectCreatedComposesMessage(t *testing.T) {
	var c captured
	m := New(Config{
		Host: "smtp.example.com", Port: 587,
		User: "sender@example.com", Password: "pw", To: "a@example.com, b@example.com",
	}, logger.Discard(), WithSendFunc(capture(&c, nil)))

	p := project.Project{Number: "PJ240101120000", SiteName: "現場A"}
	require.NoError(t, m.ProjectCreated(context.Background(), p))

	assert.Equal(t, "smtp.example.com:587", c.addr)
	assert.Equal(t, "sender@example.com", c.from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, c.to)

	head, body, ok := strings.Cut(c.msg, "\r\n\r\n")
	require.True(t, ok)

	dec := new(mime.WordDecoder)
	var subject, from string
	for _, line := range strings.Split(head, "\r\n") {
		if v, found := strings.CutPrefix(line, "Subject: "); found {
			subject, _ = dec.DecodeHeader(v)
		}
		if v, found := strings.CutPrefix(line, "From: "); found {
			from, _ = dec.DecodeHeader(v)
		}
	}
	assert.Equal(t, "【新規プロジェクト登録通知】PJ240101120000 / 現場A", subject)
	assert.Equal(t, "PJ管理システム <sender@example.com>", from)

	html, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\r\n", ""))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<strong>現場名</strong>")
}

func TestProjectCreatedReportsRelayFailure(t *testing.T) {
	var c captured
	m := New(Config{Host: "h", User: "u", Password: "p", To: "t@example.com"},
		logger.Discard(), WithSendFunc(capture(&c, errors.New("535 auth failed"))))
	err := m.ProjectCreated(context.Background(), project.Project{Number: "PJ1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")
}
