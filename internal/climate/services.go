package climate

import (
	"context"
	"fmt"

	"github.com/nerrad567/climate-control/internal/platform"
)

// registerServices adds climate.set_temperature and climate.set_hvac_mode.
func registerServices(host *platform.Host) {
	services := host.Services()
	services.Register(EntityDomain, ServiceSetTemperature, func(ctx context.Context, call platform.ServiceCall) error {
		var temperature *float64
		if raw, ok := call.Data[AttrTemperature]; ok && raw != nil {
			v, err := ToFloat(raw)
			if err != nil {
				return fmt.Errorf("%w: temperature: %v", platform.ErrInvalidServiceData, err)
			}
			temperature = &v
		}

		return forEachController(host, call, func(c *Controller) {
			c.SetTemperature(ctx, temperature)
		})
	})

	services.Register(EntityDomain, ServiceSetHVACMode, func(ctx context.Context, call platform.ServiceCall) error {
		mode, ok := call.Data[AttrHVACMode].(string)
		if !ok {
			return fmt.Errorf("%w: hvac_mode must be a string", platform.ErrInvalidServiceData)
		}

		return forEachController(host, call, func(c *Controller) {
			c.SetMode(ctx, mode)
		})
	})
}

func unregisterServices(host *platform.Host) {
	host.Services().Remove(EntityDomain, ServiceSetTemperature)
	host.Services().Remove(EntityDomain, ServiceSetHVACMode)
}

func forEachController(host *platform.Host, call platform.ServiceCall, fn func(*Controller)) error {
	targets, err := host.TargetEntities(call)
	if err != nil {
		return err
	}
	for _, e := range targets {
		if c, ok := e.(*Controller); ok {
			fn(c)
		}
	}
	return nil
}
