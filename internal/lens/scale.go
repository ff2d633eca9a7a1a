package lens

import (
	"errors"
	"fmt"

	"fisheye-renderer/internal/mathutil"
	"fisheye-renderer/internal/script"
)

// FovMode selects how the lens scale is derived: from an explicit field of
// view along one axis, or by fitting the script's nominal size.
type FovMode int

const (
	ModeHFov FovMode = iota
	ModeVFov
	ModeHFit
	ModeVFit
	ModeFit
)

// FovConfig is the requested field of view. Deg is only meaningful for
// the two FOV modes.
type FovConfig struct {
	Mode FovMode
	Deg  float64
}

// DetermineScale derives the lens scale for the current pixel extent.
// FOV modes probe the forward function at the half-fov ray along the
// constrained axis; fit modes use the nominal-to-pixel ratio. The lens
// map must not be built unless this succeeds.
func (l *Lens) DetermineScale(sc *script.Engine, cfg FovConfig) error {
	l.Scale = -1

	switch cfg.Mode {
	case ModeHFov, ModeVFov:
		if l.MaxHFov <= 0 || l.MaxVFov <= 0 {
			return errors.New(`lens: max_hfov and max_vfov not specified, try "fit"`)
		}
		if l.Forward == nil {
			return errors.New("lens: fov scaling requires a forward function in the script")
		}

		fov := mathutil.Deg2Rad(cfg.Deg)
		if cfg.Mode == ModeHFov {
			if fov > l.MaxHFov {
				return fmt.Errorf("lens: hfov must be less than %d", int(mathutil.Rad2Deg(l.MaxHFov)))
			}
			ray := mathutil.LatLonToRay(0, fov*0.5)
			x, _, ok, err := sc.EvalForward(l.Forward, ray)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("lens: forward function could not project the half-fov ray")
			}
			l.Scale = x / (float64(l.WidthPx) * 0.5)
		} else {
			if fov > l.MaxVFov {
				return fmt.Errorf("lens: vfov must be less than %d", int(mathutil.Rad2Deg(l.MaxVFov)))
			}
			ray := mathutil.LatLonToRay(fov*0.5, 0)
			_, y, ok, err := sc.EvalForward(l.Forward, ray)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("lens: forward function could not project the half-fov ray")
			}
			l.Scale = y / (float64(l.HeightPx) * 0.5)
		}

	case ModeHFit:
		if l.Width <= 0 {
			return errors.New("lens: lens_width not specified, try hfov instead")
		}
		l.Scale = l.Width / float64(l.WidthPx)

	case ModeVFit:
		if l.Height <= 0 {
			return errors.New("lens: lens_height not specified, try vfov instead")
		}
		l.Scale = l.Height / float64(l.HeightPx)

	case ModeFit:
		switch {
		case l.Width <= 0 && l.Height > 0:
			l.Scale = l.Height / float64(l.HeightPx)
		case l.Height <= 0 && l.Width > 0:
			l.Scale = l.Width / float64(l.WidthPx)
		case l.Width <= 0 && l.Height <= 0:
			return errors.New("lens: lens_width and lens_height not specified, try hfov instead")
		case l.Width/l.Height > float64(l.WidthPx)/float64(l.HeightPx):
			l.Scale = l.Width / float64(l.WidthPx)
		default:
			l.Scale = l.Height / float64(l.HeightPx)
		}
	}

	if l.Scale <= 0 {
		return fmt.Errorf("lens: derived scale %f is not positive", l.Scale)
	}
	return nil
}
