package hub

// Default reporting intervals in milliseconds. Nights are sampled more
// coarsely; a freshly created critical alert forces fast follow-up
// readings regardless of the hour.
const (
	DefaultDayIntervalMs      = 600000  // 10 min
	DefaultNightIntervalMs    = 1800000 // 30 min
	DefaultCriticalIntervalMs = 180000  // 3 min
)

// NextInterval computes the reporting interval handed back to a device.
// The override applies only when this evaluation cycle created a brand-new
// critical alert; escalating or repeating an existing alert does not
// re-trigger it.
func (h *Hub) NextInterval(hour int, createdCriticalAlert bool) int {
	if createdCriticalAlert {
		return h.cfg.CriticalIntervalMs
	}
	if hour >= 8 && hour < 24 {
		return h.cfg.DayIntervalMs
	}
	return h.cfg.NightIntervalMs
}
