package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration.
func RunSetupWizard(cfg *Config) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║          Lantern - First Run Setup           ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("── Live Room ──")

	cfg.LiveData.RoomID = promptInt64(reader, "Room id to join", cfg.LiveData.RoomID)
	cfg.LiveData.UID = promptInt64(reader, "Your uid (0 for anonymous)", cfg.LiveData.UID)

	fmt.Println()
	fmt.Println("── Local API ──")

	cfg.ApplicationData.API.Enabled = promptBool(reader,
		"Enable local overlay/status API", cfg.ApplicationData.API.Enabled)
	if cfg.ApplicationData.API.Enabled {
		cfg.ApplicationData.API.Port = promptInt(reader, "API port", cfg.ApplicationData.API.Port)
	}

	fmt.Println()
	fmt.Println("── MQTT Telemetry (optional) ──")

	cfg.ApplicationData.MQTT.Enabled = promptBool(reader,
		"Enable MQTT telemetry", cfg.ApplicationData.MQTT.Enabled)
	if cfg.ApplicationData.MQTT.Enabled {
		cfg.ApplicationData.MQTT.BrokerURL = promptString(reader,
			"MQTT broker host", cfg.ApplicationData.MQTT.BrokerURL)
		cfg.ApplicationData.MQTT.Port = promptInt(reader, "MQTT port", cfg.ApplicationData.MQTT.Port)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	log.Info().Str("path", cfg.Path()).Msg("setup complete, configuration saved")
	return nil
}

func promptString(reader *bufio.Reader, prompt, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Printf("%s: ", prompt)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return defaultValue
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue
	}
	return line
}

func promptInt(reader *bufio.Reader, prompt string, defaultValue int) int {
	for {
		s := promptString(reader, prompt, strconv.Itoa(defaultValue))
		v, err := strconv.Atoi(s)
		if err == nil {
			return v
		}
		fmt.Println("Please enter a number.")
	}
}

func promptInt64(reader *bufio.Reader, prompt string, defaultValue int64) int64 {
	for {
		s := promptString(reader, prompt, strconv.FormatInt(defaultValue, 10))
		v, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return v
		}
		fmt.Println("Please enter a number.")
	}
}

func promptBool(reader *bufio.Reader, prompt string, defaultValue bool) bool {
	def := "no"
	if defaultValue {
		def = "yes"
	}
	s := strings.ToLower(promptString(reader, prompt+" (yes/no)", def))
	return s == "yes" || s == "y" || s == "true"
}
