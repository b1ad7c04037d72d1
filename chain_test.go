package tls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainFromCertsWiresIssuerLinks(t *testing.T) {
	chain, _ := testServerChainAndKey(t)
	require.Equal(t, 2, chain.Len())

	leaf, ca := chain.Leaf(), chain.CA()
	assert.Equal(t, "localhost", leaf.Subject().CommonName)
	assert.Equal(t, "TestCorp Root CA", ca.Subject().CommonName)
	assert.Same(t, ca, leaf.issuer)
	assert.Same(t, leaf, ca.issued)
}

func TestChainFromCertsRejectsEmptySlice(t *testing.T) {
	_, err := ChainFromCerts(nil)
	assert.ErrorIs(t, err, errEmptyChain)
}

func TestChainForEachOrdersMatchLeafCADirection(t *testing.T) {
	chain, _ := testServerChainAndKey(t)

	var leafToCA []string
	chain.ForEachLeafToCA(func(c *Certificate) { leafToCA = append(leafToCA, c.Subject().CommonName) })
	assert.Equal(t, []string{"localhost", "TestCorp Root CA"}, leafToCA)

	var caToLeaf []string
	chain.ForEachCAToLeaf(func(c *Certificate) { caToLeaf = append(caToLeaf, c.Subject().CommonName) })
	assert.Equal(t, []string{"TestCorp Root CA", "localhost"}, caToLeaf)
}

func TestChainVerifySucceedsAgainstItsOwnCA(t *testing.T) {
	chain, _ := testServerChainAndKey(t)
	ca := testCA(t)

	assert.NoError(t, chain.Verify([]*Certificate{ca}))
}

func TestChainVerifyFailsAgainstAnUnrelatedCA(t *testing.T) {
	serverChain, _ := testServerChainAndKey(t)
	clientChain, _ := testClientChainAndKey(t)

	// The client's own leaf is not a valid trust anchor for the server's
	// chain: it never signed anything.
	err := serverChain.Verify([]*Certificate{clientChain.Leaf()})
	assert.ErrorIs(t, err, errChainBroken)
}

func TestChainVerifyFailsAgainstEmptyCASet(t *testing.T) {
	chain, _ := testServerChainAndKey(t)
	assert.ErrorIs(t, chain.Verify(nil), errChainBroken)
}

func TestChainVerifyRejectsTamperedLeaf(t *testing.T) {
	chain, _ := testServerChainAndKey(t)
	ca := testCA(t)

	tampered := append([]byte(nil), chain.Leaf().DERData()...)
	tampered[len(tampered)-1] ^= 0xff
	badLeaf, err := CertificateFromDER(tampered)
	if err != nil {
		// Flipping the trailing signature byte may itself break DER framing
		// on some inputs; either outcome demonstrates the chain can't verify.
		return
	}
	badChain, err := ChainFromCerts([]*Certificate{badLeaf, chain.CA()})
	require.NoError(t, err)
	assert.Error(t, badChain.Verify([]*Certificate{ca}))
}

func TestChainLinkIssuerAppendsAboveCurrentCA(t *testing.T) {
	clientChain, _ := testClientChainAndKey(t)
	ca := testCA(t)

	oldCA := clientChain.CA()
	clientChain.LinkIssuer(ca)

	assert.Equal(t, 3, clientChain.Len())
	assert.Same(t, ca, clientChain.CA())
	assert.Same(t, ca, oldCA.issuer)
	assert.Same(t, oldCA, ca.issued)
}
