package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttrToleratesMissingAttributes(t *testing.T) {
	var nilEvent *Event
	require.Empty(t, nilEvent.Attr("owner"))
	require.Empty(t, (&Event{Type: "portal.staked"}).Attr("owner"))

	evt := &Event{Type: "portal.staked", Attributes: map[string]string{"owner": "stk1"}}
	require.Equal(t, "stk1", evt.Attr("owner"))
	require.Empty(t, evt.Attr("amount"))
}
