package bot

import "fmt"

const (
	textWelcome = "🌤️ Welcome to ClimateNet! 🌧️"

	textGreeting = `Hello %s! 👋 I am your personal climate assistant.
With me, you can:
    🔹 Access current measurements of temperature, humidity, wind speed, and more, refreshed every 15 minutes.
    🔹 Compare weather data between any two devices (e.g., TUMO in Yerevan vs. a device in Gyumri).
`

	textChooseLocation      = "Please choose a location: 📍"
	textChooseDevice        = "Please choose a device: ✅"
	textNoLocations         = "⚠️ No locations are available right now. Please try again later."
	textCompareFirstRegion  = "Choose the location for the first device to compare: 📍"
	textCompareSecondRegion = "Selected %s as first device. Choose the location for the second device: 📍"
	textDeviceNotFound      = "⚠️ Device not found. ❌"
	textFetchFailed         = "⚠️ Error retrieving data. Please try again later."
	textCompareFailed       = "⚠️ Error retrieving data for one or both devices. Please try again."
	textSelectDeviceFirst   = "⚠️ Please select a device first using /Change_device 🔄."
	textCompareCanceled     = "Comparison canceled. Back to main menu."
	textNextMeasurement     = "For the next measurement, select\t\n/Current 📍 every quarter of the hour. 🕒"
	textWebsite             = "For more information, click the button below to visit our official website: 🖥️"
	textMap                 = "📌 The highlighted locations indicate the current active climate devices. 🗺️ "
	textShareLocation       = "Click the button below to share your location 🔽"
	textBackToMenu          = "You are back to the main menu. How can I assist you?"
	textLocationSaved       = "Select other commands to continue ▶️"
	textInvalidInput        = "❗ Please use a valid command.\nYou can see all available commands by typing /Help❓\n"

	textHelp = `
<b>/Current 📍:</b> Get the latest climate data in selected location.

<b>/Compare 🔍:</b> Compare weather data between two devices.

<b>/Change_device 🔄:</b> Change to another climate monitoring device.

<b>/Help ❓:</b> Show available commands.

<b>/Website 🌐:</b> Visit our website for more information.

<b>/Map 🗺️:</b> View the locations of all devices on a map.

<b>/Share_location 🌍:</b> Share your location.

`
)

func greeting(firstName string) string {
	return fmt.Sprintf(textGreeting, firstName)
}

func compareSecondRegion(device string) string {
	return fmt.Sprintf(textCompareSecondRegion, device)
}
