package configschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deepaucksharma/pidctl/internal/configschema"
)

func TestValidateSeedDoc_Accepts(t *testing.T) {
	doc := map[string]interface{}{
		"sensors": []map[string]interface{}{
			{"unique_id": "sensor-1", "period": 30},
		},
		"pids": []map[string]interface{}{
			{"id": "pid-1", "direction": "both", "output_mode": "relay"},
		},
	}
	assert.NoError(t, configschema.ValidateSeedDoc(doc))
}

func TestValidateSeedDoc_RejectsBadDirection(t *testing.T) {
	doc := map[string]interface{}{
		"pids": []map[string]interface{}{
			{"id": "pid-1", "direction": "sideways", "output_mode": "relay"},
		},
	}
	err := configschema.ValidateSeedDoc(doc)
	assert := assert.New(t)
	assert.Error(err)
	var verr *configschema.ValidationError
	assert.ErrorAs(err, &verr)
	assert.NotEmpty(verr.Issues)
}

func TestValidateSeedDoc_RejectsMissingRequired(t *testing.T) {
	doc := map[string]interface{}{
		"methods": []map[string]interface{}{
			{"kind": "Daily"},
		},
	}
	assert.Error(t, configschema.ValidateSeedDoc(doc))
}
