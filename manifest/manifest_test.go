package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	m := Default()

	require.Equal(t, 5, m.Len())

	ids := make([]string, 0, m.Len())
	for _, e := range m.Entries {
		ids = append(ids, e.Id)
		assert.NotEmpty(t, e.Description)
		assert.NotEmpty(t, e.Payload)
		assert.Equal(t, DefaultCategory, e.Category)
	}

	assert.Equal(t, []string{"avancer", "reculer", "arreter", "tourner_gauche", "tourner_droite"}, ids)
	assert.Equal(t, "motor.left.target = 200\nmotor.right.target = 200", m.Entries[0].Payload)
	assert.Equal(t, "faire avancer le robot", m.Entries[0].Description)
}

func TestParseJSON(t *testing.T) {
	m, err := Parse([]byte(`{
		"led_rouge": {"description": "allumer la led en rouge", "code": "leds.top = [32, 0, 0]", "category": "leds"},
		"danse": {"description": "danser", "payload": "call dance()"}
	}`))
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	assert.Equal(t, Entry{Id: "led_rouge", Description: "allumer la led en rouge", Payload: "leds.top = [32, 0, 0]", Category: "leds"}, m.Entries[0])
	assert.Equal(t, Entry{Id: "danse", Description: "danser", Payload: "call dance()", Category: DefaultCategory}, m.Entries[1])
}

func TestParseKeepsIncompleteEntries(t *testing.T) {
	m, err := Parse([]byte("vide:\n  description: rien\n"))
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
	assert.Empty(t, m.Entries[0].Payload)
}

func TestParseKeepsDocumentOrder(t *testing.T) {
	m, err := Parse([]byte(`
zigzag:
  description: faire un zigzag
  payload: a
avancer:
  description: faire avancer le robot
  payload: b
milieu:
  description: aller au milieu
  payload: c
`))
	require.NoError(t, err)

	ids := make([]string, 0, m.Len())
	for _, e := range m.Entries {
		ids = append(ids, e.Id)
	}

	assert.Equal(t, []string{"zigzag", "avancer", "milieu"}, ids)
}

func TestParseEmpty(t *testing.T) {
	m, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"list":          "- just\n- a list\n",
		"duplicate id":  "stop:\n  description: a\nstop:\n  description: b\n",
		"scalar entry":  "stop: [1, 2]\n",
		"broken syntax": "stop: {description: \"a\"\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stop:\n  description: stop\n  payload: x\n"), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
	assert.Equal(t, "stop", m.Entries[0].Id)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
