package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"plantai/database"
	"plantai/models"
	"plantai/services"
)

var errExit = errors.New("exit")

// kind describes one table the console can add to, show and delete from
type kind struct {
	header       string
	addPrompts   []string
	build        func(answers []string) (models.Entity, error)
	showPrompts  []string
	list         func(ctx context.Context, answers []string) ([]models.Entity, error)
	deletePrompt string
	remove       func(ctx context.Context, id uint) (string, error)
}

type console struct {
	db         *database.Database
	csv        *services.CSVService
	deps       services.CommandDeps
	importPath string
	exportPath string
	kinds      map[string]*kind
	in         *bufio.Scanner
	out        io.Writer
	logger     *zap.Logger
}

func newConsole(db *database.Database, deps services.CommandDeps, importPath, exportPath string, in io.Reader, out io.Writer, logger *zap.Logger) *console {
	c := &console{
		db:         db,
		csv:        services.NewCSVService(db, logger),
		deps:       deps,
		importPath: importPath,
		exportPath: exportPath,
		in:         bufio.NewScanner(in),
		out:        out,
		logger:     logger.Named("console"),
	}
	c.kinds = map[string]*kind{
		"plant": {
			header:     "[ID | Species (ID) | Sensor (ID) | Name]",
			addPrompts: []string{"Choose a name:", "Choose a species (ID):", "Choose a sensor (ID):"},
			build: func(a []string) (models.Entity, error) {
				speciesID, err := parseID(a[1])
				if err != nil {
					return nil, err
				}
				sensorID, err := parseID(a[2])
				if err != nil {
					return nil, err
				}
				return &models.Plant{Name: a[0], SpeciesID: speciesID, SensorID: sensorID}, nil
			},
			list: func(ctx context.Context, _ []string) ([]models.Entity, error) {
				list, err := db.ListPlants(ctx)
				out := make([]models.Entity, len(list))
				for i := range list {
					out[i] = &list[i]
				}
				return out, err
			},
			deletePrompt: "Choose a plant to delete (ID):",
			remove:       deleteEntry(db.DeletePlant),
		},
		"species": {
			header:     "[ID | Name | min. Moisture]",
			addPrompts: []string{"Choose a name:", "Choose a min. Moisture:"},
			build: func(a []string) (models.Entity, error) {
				moisture, err := strconv.ParseFloat(a[1], 64)
				if err != nil {
					return nil, fmt.Errorf("invalid moisture %q", a[1])
				}
				return &models.Species{Name: a[0], MinMoisture: moisture}, nil
			},
			list: func(ctx context.Context, _ []string) ([]models.Entity, error) {
				list, err := db.ListSpecies(ctx)
				out := make([]models.Entity, len(list))
				for i := range list {
					out[i] = &list[i]
				}
				return out, err
			},
			deletePrompt: "Choose a species to delete (ID):",
			remove:       deleteEntry(db.DeleteSpecies),
		},
		"sensor": {
			header:     "[ID | I2C-Address]",
			addPrompts: []string{"Choose I2C-Address (hex: 0x36):"},
			build: func(a []string) (models.Entity, error) {
				address, err := parseAddress(a[0])
				if err != nil {
					return nil, err
				}
				return &models.Sensor{Address: address}, nil
			},
			list: func(ctx context.Context, _ []string) ([]models.Entity, error) {
				list, err := db.ListSensors(ctx)
				out := make([]models.Entity, len(list))
				for i := range list {
					out[i] = &list[i]
				}
				return out, err
			},
			deletePrompt: "Choose a sensor to delete (ID):",
			remove:       deleteEntry(db.DeleteSensor),
		},
		"measure": {
			header:      "[ID | Sensor (ID) | Moisture | Temperature | Minutes until Dry | Timestamp]",
			showPrompts: []string{"Choose a sensor to show (ID):", "Choose how many entries:"},
			list: func(ctx context.Context, a []string) ([]models.Entity, error) {
				sensorID, err := parseID(a[0])
				if err != nil {
					return nil, err
				}
				limit, err := strconv.Atoi(a[1])
				if err != nil {
					return nil, fmt.Errorf("invalid number of entries %q", a[1])
				}
				list, err := db.ListMeasurements(ctx, sensorID, limit)
				out := make([]models.Entity, len(list))
				for i := range list {
					out[i] = &list[i]
				}
				return out, err
			},
			deletePrompt: "Choose a sensor to delete measurements of (ID):",
			remove: func(ctx context.Context, id uint) (string, error) {
				n, err := db.DeleteMeasurements(ctx, id)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d measurements of sensor %d deleted!", n, id), nil
			},
		},
	}
	return c
}

func deleteEntry(del func(ctx context.Context, id uint) error) func(ctx context.Context, id uint) (string, error) {
	return func(ctx context.Context, id uint) (string, error) {
		if err := del(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Entry %d deleted!", id), nil
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return uint(id), nil
}

// parseAddress accepts an I2C address in hex with or without the 0x prefix
func parseAddress(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	address, err := strconv.ParseInt(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil || address < 0 || address > 0x7f {
		return 0, fmt.Errorf("invalid I2C address %q", s)
	}
	return int(address), nil
}

func (c *console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// ask prints each prompt and collects one answer line per prompt
func (c *console) ask(prompts ...string) ([]string, error) {
	answers := make([]string, 0, len(prompts))
	for _, prompt := range prompts {
		c.println(prompt)
		fmt.Fprint(c.out, ">>> ")
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return nil, err
			}
			return nil, errExit
		}
		answers = append(answers, strings.TrimSpace(c.in.Text()))
	}
	return answers, nil
}

// Run reads commands until exit, bye or the end of input
func (c *console) Run(ctx context.Context) error {
	c.println("Welcome to PlantAI!")
	for {
		fmt.Fprint(c.out, ">>> ")
		if !c.in.Scan() {
			return c.in.Err()
		}
		err := c.Execute(ctx, c.in.Text())
		if errors.Is(err, errExit) {
			c.println("Goodbye!")
			return nil
		}
		if err != nil {
			c.logger.Debug("Command failed", zap.String("command", c.in.Text()), zap.Error(err))
			c.println(err)
		}
	}
}

// Execute runs a single console command line
func (c *console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}
	target := ""
	if len(fields) > 1 {
		target = fields[1]
	}

	switch fields[0] {
	case "add":
		return c.add(ctx, target)
	case "delete":
		return c.delete(ctx, target)
	case "show":
		return c.show(ctx, target)
	case "csv":
		return c.csvStream(ctx, target)
	case "predict":
		return c.predict(ctx)
	case "weather":
		return c.weather(ctx)
	case "help":
		c.help()
		return nil
	case "exit", "bye":
		return errExit
	default:
		c.unknown()
		return nil
	}
}

func (c *console) lookup(name string, has func(k *kind) bool) *kind {
	k, ok := c.kinds[name]
	if !ok || !has(k) {
		c.unknown()
		return nil
	}
	return k
}

func (c *console) add(ctx context.Context, target string) error {
	k := c.lookup(target, func(k *kind) bool { return k.build != nil })
	if k == nil {
		return nil
	}
	answers, err := c.ask(k.addPrompts...)
	if err != nil {
		return err
	}
	entity, err := k.build(answers)
	if err != nil {
		return err
	}
	if err := c.db.Insert(ctx, entity); err != nil {
		return err
	}
	c.println(strings.ToUpper(target[:1]) + target[1:] + " added! " + entity.Describe())
	return nil
}

func (c *console) delete(ctx context.Context, target string) error {
	k := c.lookup(target, func(k *kind) bool { return k.remove != nil })
	if k == nil {
		return nil
	}
	answers, err := c.ask(k.deletePrompt)
	if err != nil {
		return err
	}
	id, err := parseID(answers[0])
	if err != nil {
		return err
	}
	msg, err := k.remove(ctx, id)
	if err != nil {
		return err
	}
	c.println(msg)
	return nil
}

func (c *console) show(ctx context.Context, target string) error {
	k := c.lookup(target, func(k *kind) bool { return k.list != nil })
	if k == nil {
		return nil
	}
	answers, err := c.ask(k.showPrompts...)
	if err != nil {
		return err
	}
	list, err := k.list(ctx, answers)
	if err != nil {
		return err
	}
	c.println(k.header)
	c.println(strings.Repeat("-", len(k.header)))
	for _, e := range list {
		c.println(e.Describe())
	}
	return nil
}

func (c *console) csvStream(ctx context.Context, target string) error {
	if target != "import" && target != "export" {
		c.unknown()
		return nil
	}
	answers, err := c.ask(fmt.Sprintf("Choose a sensor to %s (ID):", target))
	if err != nil {
		return err
	}
	sensorID, err := parseID(answers[0])
	if err != nil {
		return err
	}

	if target == "import" {
		n, err := c.csv.ImportFile(ctx, c.importPath, sensorID)
		if err != nil {
			return err
		}
		c.println(fmt.Sprintf("Import successful! %d measurements from %s", n, c.importPath))
		return nil
	}
	n, err := c.csv.ExportFile(ctx, c.exportPath, sensorID)
	if err != nil {
		return err
	}
	c.println(fmt.Sprintf("Export successful! %d measurements to %s", n, c.exportPath))
	return nil
}

// predict trains the sensor's model from the store, since the console runs
// apart from the monitoring service, then answers like the bot does
func (c *console) predict(ctx context.Context) error {
	answers, err := c.ask("Choose a sensor (ID):")
	if err != nil {
		return err
	}
	sensorID, err := parseID(answers[0])
	if err != nil {
		return err
	}
	if _, err := c.deps.Predictors.Retrain(ctx, sensorID); err != nil {
		return err
	}
	c.println(services.HandleCommand(ctx, c.deps, "predict", strconv.FormatUint(uint64(sensorID), 10)))
	return nil
}

func (c *console) weather(ctx context.Context) error {
	answers, err := c.ask("Choose a location:")
	if err != nil {
		return err
	}
	c.println(services.HandleCommand(ctx, c.deps, "weather", answers[0]))
	return nil
}

func (c *console) help() {
	c.println("Available commands:")
	c.println("  add [plant,species,sensor]             Add a new plant, species or sensor")
	c.println("  delete [plant,species,sensor,measure]  Delete a plant, species, sensor or the measurements of a sensor")
	c.println("  show [plant,species,sensor,measure]    Show all plants, species, sensors or measurements")
	c.println("  csv [import,export]                    Import or export the measurements of a sensor as CSV")
	c.println("  predict                                Predict when the plant soil is dry")
	c.println("  weather                                Show weather forecast")
	c.println("  help                                   Show this help message")
	c.println("  exit,bye                               Exit")
}

func (c *console) unknown() {
	c.println("Unknown command. Type 'help' for a list of commands.")
}
