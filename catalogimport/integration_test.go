package catalogimport

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/mmdatafocus/catalog_backend/models"
	"github.com/mmdatafocus/catalog_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogImportAgainstMySQLAndRedis(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "catalog_test")

	prevDB := config.GetDB()
	t.Cleanup(func() {
		config.SetDB(prevDB)
		config.SetRedis(nil)
	})

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry(ctx)
	require.NoError(t, models.MigrateTable())

	run := queueRun(t, "biz-it", siblingCatalog)
	summary, err := ProcessImportRun(ctx, ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-it"})
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Created())
	assert.Equal(t, models.ImportRunStatusSuccess, loadRun(t, "biz-it", run.ID).Status)

	// persisted codes are never created twice
	bizCtx := utils.SetBusinessIdInContext(ctx, "biz-it")
	_, err = models.CreateArea(bizCtx, &models.NewArea{Code: "1", Name: "PRELIMINARES"})
	assert.ErrorIs(t, err, utils.ErrorDuplicateCode)

	// a concurrent import for the same business waits in the queue
	release, err := utils.BusinessLock(ctx, "biz-it", importLockType, time.Minute, moduleName, t.Name())
	require.NoError(t, err)
	blocked := queueRun(t, "biz-it", workedExample)
	_, err = ProcessImportRun(ctx, ImportPubSubPayload{RunId: blocked.ID, BusinessId: "biz-it"})
	assert.ErrorIs(t, err, ErrImportInProgress)
	assert.Equal(t, models.ImportRunStatusQueued, loadRun(t, "biz-it", blocked.ID).Status)
	release()

	_, err = ProcessImportRun(ctx, ImportPubSubPayload{RunId: blocked.ID, BusinessId: "biz-it"})
	require.NoError(t, err)
	assert.Equal(t, models.ImportRunStatusSuccess, loadRun(t, "biz-it", blocked.ID).Status)
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("catalog-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("catalog-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=catalog_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
