package validation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/localmind/backend/internal/logger"
	"go.uber.org/zap"
)

// Optional services. The database is always required and is checked by its own startup path.
const (
	ServiceRedis = "redis"
	ServiceAI    = "ai"
)

var knownServices = []string{ServiceRedis, ServiceAI}

const checkTimeout = 10 * time.Second

// Check probes one service
type Check func(ctx context.Context) error

// ServiceValidator makes startup fail when a service marked as required is unreachable.
// Services that are not required only degrade /health.
type ServiceValidator struct {
	requiredServices []string
	checks           map[string]Check
}

// NewServiceValidator creates a validator for the services named by the
// LOCALMIND_REQUIRE_* environment variables
func NewServiceValidator(checks map[string]Check) *ServiceValidator {
	return &ServiceValidator{
		requiredServices: parseRequiredServices(),
		checks:           checks,
	}
}

// Required lists the services that must pass
func (sv *ServiceValidator) Required() []string {
	return sv.requiredServices
}

// ValidateServices runs the check of every required service
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.requiredServices) == 0 {
		logger.Log.Debug("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services", zap.Strings("services", sv.requiredServices))

	for _, name := range sv.requiredServices {
		check, ok := sv.checks[name]
		if !ok {
			// a required service that was never configured cannot pass
			return fmt.Errorf("required service '%s' is not configured", name)
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			logger.Log.Error("Required service validation failed", zap.String("service", name), zap.Error(err))
			return fmt.Errorf("required service '%s' validation failed: %w", name, err)
		}

		logger.Log.Info("Service validated", zap.String("service", name))
	}
	return nil
}

// parseRequiredServices reads LOCALMIND_REQUIRE_REDIS and LOCALMIND_REQUIRE_AI
func parseRequiredServices() []string {
	var required []string
	for _, service := range knownServices {
		envVar := "LOCALMIND_REQUIRE_" + strings.ToUpper(service)
		if isTruthy(os.Getenv(envVar)) {
			required = append(required, service)
		}
	}
	return required
}

func isTruthy(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}
