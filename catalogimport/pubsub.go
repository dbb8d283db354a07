package catalogimport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/catalog_backend/config"
	"google.golang.org/api/idtoken"
)

func PublishImportRun(ctx context.Context, payload ImportPubSubPayload) error {
	topicName := strings.TrimSpace(os.Getenv("CATALOG_IMPORT_TOPIC"))
	if topicName == "" {
		topicName = "catalog-import"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if config.EnvBoolDefault("CATALOG_IMPORT_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(ctx, client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"business_id": payload.BusinessId},
	})
	_, err = res.Get(ctx)
	return err
}

// validateIDToken is swapped in tests.
var validateIDToken = idtoken.Validate

// pushAuthorized checks the shared push token and, when an audience is set,
// the OIDC token Pub/Sub signs for authenticated push subscriptions.
func pushAuthorized(c *gin.Context) bool {
	if secret := strings.TrimSpace(os.Getenv("CATALOG_IMPORT_PUSH_TOKEN")); secret != "" {
		got := c.Query("token")
		if got == "" {
			got = c.GetHeader("X-Push-Token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return false
		}
	}

	audience := strings.TrimSpace(os.Getenv("CATALOG_IMPORT_PUSH_AUDIENCE"))
	if audience == "" {
		return true
	}
	auth := c.GetHeader("Authorization")
	if len(auth) <= 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return false
	}
	payload, err := validateIDToken(c.Request.Context(), strings.TrimSpace(auth[7:]), audience)
	if err != nil {
		config.GetLogger().WithField("module", moduleName).Warnf("push token rejected: %v", err)
		return false
	}
	if account := strings.TrimSpace(os.Getenv("CATALOG_IMPORT_PUSH_SERVICE_ACCOUNT")); account != "" {
		email, _ := payload.Claims["email"].(string)
		return strings.EqualFold(email, account)
	}
	return true
}

// PubSubPushHandler acknowledges every message it can settle; a failed run is
// recorded on the run itself. Runs blocked by another import for the same
// business are left queued and the message is nacked for redelivery.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.EnvBoolDefault("ENABLE_CATALOG_IMPORT_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}
		if !pushAuthorized(c) {
			c.Status(http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload ImportPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 || payload.BusinessId == "" {
			c.Status(204)
			return
		}

		_, err = ProcessImportRun(c.Request.Context(), payload)
		switch {
		case errors.Is(err, ErrImportInProgress):
			config.GetLogger().WithField("run_id", payload.RunId).Info("business import lock taken; message will be redelivered")
			c.Status(http.StatusServiceUnavailable)
			return
		case errors.Is(err, ErrRunAlreadyRunning):
			config.GetLogger().WithField("run_id", payload.RunId).Info("import run already running; message acknowledged")
		case err != nil:
			config.LogError(config.GetLogger(), moduleName, "PubSubPushHandler", "process import run", payload, err)
		}
		c.Status(204)
	}
}
