package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/yknld/geminiloop/pkg/browser"
)

// evaluateArrayServerScript acks initialize, then answers any tools/call
// with a double-wrapped array result, exercising discoverInteractiveTargets
// end to end through the real browser.Client transport.
const evaluateArrayServerScript = `
while IFS= read -r line; do
  id=$(echo "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{}}\n' "$id"
      ;;
    *'"method":"tools/call"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"success":true,"result":{"result":[{"selector":"#submit","tag":"button","role":"","text":"Submit","type":"submit"}]}}}\n' "$id"
      ;;
  esac
done
`

func TestDiscoverInteractiveTargetsParsesDoubleWrappedArray(t *testing.T) {
	c := browser.New(logr.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx, "sh", "-c", evaluateArrayServerScript))
	defer c.Disconnect()

	targets := discoverInteractiveTargets(ctx, c)
	require.Len(t, targets, 1)
	require.Equal(t, "#submit", targets[0].Selector)
	require.Equal(t, "button", targets[0].Tag)
	require.Equal(t, "Submit", targets[0].Text)
}
