// internal/sc/types_test.go
package sc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	testCases := []struct {
		name      string
		expected  Type
		expectErr bool
	}{
		{name: "class", expected: ConstClass},
		{name: "var_membership", expected: VarPermPosArc},
		{name: "  Link ", expected: ConstLink},
		{name: "triangle", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseType(tc.name)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestType_StringRoundTrip(t *testing.T) {
	for _, name := range TypeNames() {
		t.Run(name, func(t *testing.T) {
			typ, err := ParseType(name)
			require.NoError(t, err)
			assert.Equal(t, name, typ.String())
		})
	}
	assert.Equal(t, "unknown", Type(0).String())
	assert.Equal(t, "node|const|pos", (Node | Const | Pos).String())
}

func TestType_AsConstAndMatches(t *testing.T) {
	assert.Equal(t, ConstPermPosArc, VarPermPosArc.AsConst())
	assert.Equal(t, ConstNode, ConstNode.AsConst())

	assert.True(t, VarNode.Matches(ConstNode))
	assert.True(t, VarNode.Matches(ConstClass), "subtyped nodes still match a plain node variable")
	assert.False(t, VarClass.Matches(ConstNode), "a class variable requires the class bit")
	assert.False(t, VarNode.Matches(VarNode), "variables only match constants")
	assert.True(t, VarPermPosArc.Matches(ConstPermPosArc))
	assert.False(t, VarPermPosArc.Matches(ConstPermNegArc))
	assert.True(t, Type(0).Matches(ConstLink))
}

func TestType_Validity(t *testing.T) {
	assert.True(t, ConstClass.IsValidNodeType())
	assert.False(t, (Node | Class | Structure).IsValidNodeType())
	assert.False(t, ConstLink.IsValidNodeType())
	assert.True(t, VarLink.IsValidLinkType())
	assert.False(t, (Link | Class).IsValidLinkType())
	assert.True(t, ConstCommonArc.IsValidConnectorType())
	assert.True(t, VarTempPosArc.IsValidConnectorType())
	assert.False(t, (CommonArc | Pos).IsValidConnectorType())
	assert.False(t, ConstNode.IsValidConnectorType())
	assert.True(t, ConstPermPosArc.IsConnector())
	assert.True(t, ConstPermPosArc.IsMembershipArc())
	assert.True(t, ConstNode.HasClass())
	assert.False(t, (Node | Link).HasClass())
}
