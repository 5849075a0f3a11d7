package opencode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyTextDropsNonTextParts(t *testing.T) {
	t.Parallel()

	raw := `{"parts":[{"type":"text","text":"A"},{"type":"image","url":"x.png"},{"type":"text","text":"B"}]}`

	var reply Reply
	require.NoError(t, json.Unmarshal([]byte(raw), &reply))
	require.Len(t, reply.Parts, 3)

	other, ok := reply.Parts[1].(OtherPart)
	require.True(t, ok)
	assert.Equal(t, "image", other.PartType())
	assert.JSONEq(t, `{"type":"image","url":"x.png"}`, string(other.Raw))

	assert.Equal(t, "A\nB", reply.Text())
}

func TestReplyTextEdgeCases(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`{}`:                                    "",
		`{"parts":[]}`:                          "",
		`{"parts":[{"type":"tool","name":"x"}]}`: "",
		`{"parts":[{"type":"text"}]}`:           "",
		`{"parts":[{"type":"text","text":""},{"type":"text","text":"B"}]}`: "\nB",
	}
	for raw, want := range cases {
		var reply Reply
		require.NoError(t, json.Unmarshal([]byte(raw), &reply), raw)
		assert.Equal(t, want, reply.Text(), raw)
	}
}

func TestReplyRejectsMalformedParts(t *testing.T) {
	t.Parallel()

	var reply Reply
	assert.Error(t, json.Unmarshal([]byte(`{"parts":[1]}`), &reply))
}
