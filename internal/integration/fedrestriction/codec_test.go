package fedrestriction

import (
	"testing"
	"time"

	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/internal/integration/integrationtest"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	restrictions := []restrictiondomain.FederalRestriction{
		{SIN: "046454286", LastName: "Doe", GivenName: "Jane", BirthDate: time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC), RestrictionCode: "B2"},
		{SIN: "123456782", LastName: "Lovelace", GivenName: "Ada", BirthDate: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), RestrictionCode: "DF"},
	}
	file, err := Encode("NSLS", 3, integrationtest.Now, restrictions)
	require.NoError(t, err)
	content, err := file.Bytes()
	require.NoError(t, err)

	decoded, err := Decode(fixedwidth.SplitLines(content))
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, restrictions[0], decoded.Records[0].Value)
	assert.Equal(t, restrictions[1], decoded.Records[1].Value)
	assert.Equal(t, "NSLS", decoded.Header.Text(integration.FieldOriginator))
	assert.Equal(t, int64(2), decoded.Footer.Int(integration.FieldRecordCount))
	assert.Equal(t, int64(46454286+123456782), decoded.Footer.Int(integration.FieldHashTotal))
}
