// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"health-risk-workers/pkg/registry"
)

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)

	var registryPath string
	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd, syncCmd} {
		fs.StringVar(&registryPath, "path", "configs/activity-registry.json", "Path to registry file")
	}

	// Add command flags
	idAdd := addCmd.String("id", "", "Activity ID (e.g., clinical.risk.assess)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Assess Health Risk)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (e.g., clinical)")
	taskType := addCmd.String("taskType", "", "Camunda Task Type (e.g., assess-health-risk)")
	version := addCmd.String("version", "1.0.0", "Version")
	implStatus := addCmd.String("status", "planned", "Implementation Status (planned, in-progress, completed, verified)")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, etc.)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *category == "" || *taskType == "" {
			fmt.Println("Error: id, displayName, description, category, and taskType are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		activity := registry.Activity{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			TaskType:             *taskType,
			ImplementationStatus: *implStatus,
			InputSchema:          map[string]interface{}{},
			OutputSchema:         map[string]interface{}{},
			ErrorCodes:           []string{},
			Timeout:              "10s",
			Workflows:            []string{},
			Tags:                 []string{},
		}
		if err := addActivity(registryPath, activity); err != nil {
			fmt.Printf("Error adding activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added activity: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(registryPath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(registryPath)
		if err == nil {
			err = reg.Validate()
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "sync":
		syncCmd.Parse(os.Args[2:])
		n, err := syncActivities(registryPath)
		if err != nil {
			fmt.Printf("Error syncing registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Synced %d clinical activities into %s\n", n, registryPath)

	case "help":
		fallthrough
	default:
		help()
	}
}

func loadOrCreate(path string) (*registry.ActivityRegistry, error) {
	reg, err := registry.LoadRegistry(path)
	if os.IsNotExist(err) {
		return registry.NewRegistry("1.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func addActivity(path string, activity registry.Activity) error {
	reg, err := loadOrCreate(path)
	if err != nil {
		return err
	}
	if _, exists := reg.Find(activity.ID); exists {
		return fmt.Errorf("activity with ID %s already exists", activity.ID)
	}
	reg.Upsert(activity)
	return reg.Save(path)
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	existing, found := reg.Find(id)
	if !found {
		return fmt.Errorf("activity with ID %s not found", id)
	}
	activity := *existing

	switch field {
	case "status":
		if !registry.ValidStatus(value) {
			return fmt.Errorf("unknown status: %s", value)
		}
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "category":
		activity.Category = value
	case "taskType":
		activity.TaskType = value
	case "timeout":
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.Upsert(activity)
	return reg.Save(path)
}

// syncActivities writes the entries for the workers built into this
// repository, keeping any other activities in the file.
func syncActivities(path string) (int, error) {
	reg, err := loadOrCreate(path)
	if err != nil {
		return 0, err
	}
	activities, err := clinicalActivities()
	if err != nil {
		return 0, err
	}
	for _, a := range activities {
		reg.Upsert(a)
	}
	if err := reg.Validate(); err != nil {
		return 0, err
	}
	return len(activities), reg.Save(path)
}

const usage = `
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new activity to the registry
  update   Update an existing activity's field
  validate Validate the registry file
  sync     Write the clinical worker entries from code
  help     Show this help message

Examples:
  registry-updater sync
  registry-updater add -id clinical.risk.rescore -displayName "Rescore Risk" -description "Re-runs an assessment" -category clinical -taskType rescore-health-risk
  registry-updater update -id clinical.risk.assess -field status -value verified
  registry-updater validate -path configs/activity-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`

func help() {
	fmt.Print(usage)
}
