package hazard

// SafetyProtocol returns the site response actions for a hazard type.
// Forecast variants share the actions of their live type.
func SafetyProtocol(t Type) []string {
	switch t.Base() {
	case HeatIndex:
		return []string{
			"Implement work/rest cycles per OSHA heat illness prevention guidelines",
			"Ensure adequate shade structures and cooling areas are available on-site",
			"Station a trained observer to monitor workers for signs of heat illness",
			"Provide cool drinking water within easy access of all work areas",
			"Allow workers to acclimatize; new or returning workers need gradual exposure",
			"Schedule heavy labor during cooler hours (early morning or late afternoon)",
		}
	case ColdTemp:
		return []string{
			"Limit prolonged outdoor exposure and implement warm-up break rotation",
			"Ensure heated break areas are accessible and within close proximity",
			"Monitor all workers for early signs of hypothermia and frostbite",
			"Implement the buddy system for all cold weather outdoor work",
			"Ensure emergency warming supplies are stocked and accessible",
			"Delay non-critical outdoor work if wind chill makes conditions dangerous",
		}
	case WindSpeed:
		return []string{
			"Secure all loose materials, tools, and equipment immediately",
			"Suspend crane operations, elevated work platforms, and scaffolding use",
			"Evaluate scaffolding stability and tie-off all unsecured structures",
			"Restrict work at heights; no ladder use in high wind conditions",
			"Keep workers away from unsecured structures, trees, and power lines",
			"Consider suspending all outdoor operations if gusts exceed 60 mph",
		}
	case AQI:
		return []string{
			"Limit prolonged outdoor exertion for all workers",
			"Provide NIOSH-approved N95 respirators for outdoor workers",
			"Move work activities indoors where possible",
			"Monitor workers with asthma, COPD, or respiratory conditions closely",
			"Increase break frequency and reduce physical workload intensity",
			"If AQI exceeds 200, suspend non-essential outdoor operations",
		}
	case WinterWeather:
		return []string{
			"Pre-treat walkways and work surfaces with salt/sand before precipitation",
			"Ensure all vehicles have winter emergency kits (blankets, chains, flashlight)",
			"Clear snow and ice from all walking and working surfaces immediately",
			"Inspect scaffolding and elevated platforms for ice accumulation",
			"Delay non-essential outdoor work during active winter precipitation",
			"Establish a clear communication plan for weather-related schedule changes",
		}
	case SevereStorm:
		return []string{
			"Evacuate workers from elevated and exposed positions immediately",
			"Move all personnel to designated severe weather shelter areas",
			"Secure or lower crane booms and tall equipment",
			"Account for all workers and conduct a headcount at the shelter location",
			"Do not resume outdoor work until all-clear is given by site supervisor",
			"Inspect work areas for damage before resuming operations",
		}
	default:
		return []string{
			"Follow all instructions from the National Weather Service alert",
			"Ensure all workers are aware of the active alert and its severity",
			"Activate your site-specific emergency action plan",
			"Monitor NWS updates for changes in alert status",
			"Do not resume normal operations until the alert has expired or been cancelled",
		}
	}
}

// PPE returns the protective equipment reminders for a hazard type.
func PPE(t Type) []string {
	switch t.Base() {
	case HeatIndex:
		return []string{
			"Lightweight, light-colored, loose-fitting clothing",
			"Wide-brimmed hard hat or hat with neck shade",
			"UV-protective sunglasses (ANSI Z87.1 rated)",
			"Sunscreen SPF 30+ (reapply every 2 hours)",
			"Cooling vests or towels for high-exertion tasks",
		}
	case ColdTemp:
		return []string{
			"Insulated, layered clothing (moisture-wicking base layer)",
			"Insulated, waterproof gloves with grip",
			"Insulated, waterproof boots with slip-resistant soles",
			"Balaclava or face covering to protect against wind chill",
			"Hand and toe warmers for extended outdoor exposure",
		}
	case WindSpeed:
		return []string{
			"Snug-fitting hard hat with chin strap secured",
			"Safety glasses with side shields (secure fit)",
			"Windproof outer layer to maintain core temperature",
			"Full-body harness and tie-off for any elevated work",
			"Hearing protection if wind noise exceeds safe levels",
		}
	case AQI:
		return []string{
			"NIOSH-approved N95 or P100 respirator (fit-tested)",
			"Safety goggles if particulate matter causes eye irritation",
			"Long sleeves to reduce skin exposure to airborne irritants",
			"Keep spare respirator filters accessible on-site",
			"Ensure all workers have been fit-tested for their respirator size",
		}
	case WinterWeather:
		return []string{
			"Insulated, waterproof boots with aggressive tread",
			"Insulated, waterproof gloves with grip for tool handling",
			"Layered clothing with waterproof outer shell",
			"High-visibility vest or jacket (visibility reduced in snow)",
			"Ice cleats/traction devices for boots",
		}
	case SevereStorm:
		return []string{
			"Hard hat (required when moving to shelter)",
			"High-visibility vest for accountability",
			"Waterproof outer layer",
			"Sturdy, closed-toe footwear",
			"Personal flashlight in case of power loss",
		}
	default:
		return []string{
			"Follow PPE guidance specific to the alert type",
			"High-visibility vest for all outdoor workers",
			"Hard hat required in all work areas",
			"Ensure communication devices (radio/phone) are charged and accessible",
		}
	}
}

type HydrationStep struct {
	Range       string `json:"range"`
	Instruction string `json:"instruction"`
}

// HydrationSchedule is attached to heat alerts.
func HydrationSchedule() []HydrationStep {
	return []HydrationStep{
		{Range: "Heat Index 80-90°F", Instruction: "Drink at least 1 cup (8 oz) of water every 20 minutes"},
		{Range: "Heat Index 91-95°F", Instruction: "Drink 1 cup every 15-20 minutes"},
		{Range: "Heat Index 96-100°F", Instruction: "Drink 1 cup every 15 minutes, mandatory shade breaks every hour"},
		{Range: "Heat Index 101-105°F", Instruction: "Drink 1 cup every 10-15 minutes, 15-min break per hour minimum"},
		{Range: "Heat Index > 105°F", Instruction: "Drink 1 cup every 10 minutes, reschedule non-essential outdoor work"},
	}
}
