package bot

// commandMenu is the main menu. The /Current key shows the selected device.
func commandMenu(current string) *Keyboard {
	buttons := []Button{
		{Text: "/Current 📍" + current},
		{Text: "/Compare 🔍"},
		{Text: "/Change_device 🔄"},
		{Text: "/Help ❓"},
		{Text: "/Website 🌐"},
		{Text: "/Map 🗺️"},
		{Text: "/Share_location 🌍"},
	}

	var rows [][]Button
	for i := 0; i < len(buttons); i += 2 {
		end := i + 2
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return &Keyboard{Rows: rows}
}

// listMenu puts each label on its own row, followed by an optional trailer key.
func listMenu(labels []string, trailer string) *Keyboard {
	rows := make([][]Button, 0, len(labels)+1)
	for _, l := range labels {
		rows = append(rows, []Button{{Text: l}})
	}
	if trailer != "" {
		rows = append(rows, []Button{{Text: trailer}})
	}
	return &Keyboard{Rows: rows}
}

func regionMenu(regions []string) *Keyboard {
	return listMenu(regions, "")
}

// deviceMenu lists a region's devices with /Cancel while comparing and
// /Change_location otherwise.
func deviceMenu(devices []string, comparing bool) *Keyboard {
	if comparing {
		return listMenu(devices, "/Cancel")
	}
	return listMenu(devices, "/Change_location")
}

func websiteButton(url string) *Keyboard {
	return &Keyboard{
		Inline: true,
		Rows:   [][]Button{{{Text: "Visit Website", URL: url}}},
	}
}

func shareLocationMenu() *Keyboard {
	return &Keyboard{
		OneTime: true,
		Rows: [][]Button{
			{{Text: "📍 Share Location", RequestLocation: true}},
			{{Text: "/back 🔙"}},
		},
	}
}
