package structured

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	caps := map[string]string{"user": "root", "ip": "10.0.0.1", "empty": ""}
	cases := []struct{ in, want string }{
		{"Failed login for {user} from {ip}", "Failed login for root from 10.0.0.1"},
		{"{unknown} stays", "{unknown} stays"},
		{"{{user}} is escaped", "{user} is escaped"},
		{"empty={empty}.", "empty=."},
		{"dangling {user", "dangling {user"},
		{"no placeholders", "no placeholders"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Render(c.in, caps), c.in)
	}
}
