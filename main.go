// un52-config is the headless configuration and diagnostics tool for the
// Ultimate-NAG52 transmission controller.
//
// Adapter selection comes from un52.yaml (or ~/.un52/un52.yaml), overridable
// with -adapter/-port flags:
//
//	adapter:
//	  kind: usb        # usb | passthru | socketcan
//	  port: /dev/ttyUSB0
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/coredump"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/debug"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/firmware"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/hardware"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/ident"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/records"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/settings"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: un52-config [flags] <command>

commands:
  adapters                   list candidate adapters
  ident                      read and print the TCU identity
  monitor <record>           poll one telemetry record (%s)
  settings backup <block> <file>
  settings restore <block> <file>
  settings reset <block>     blocks: TCC SOL SBS NAG PRM ADP ETS
  config show                print core + EFUSE configuration
  coredump <dir>             download the crash dump ELF into dir
  fwinfo <file>              print the app descriptor of a firmware image
  log                        tail the board log stream (USB only)

flags:
`, recordNames())
	flag.PrintDefaults()
}

func recordNames() string {
	names := make([]string, 0, len(records.All))
	for _, id := range records.All {
		names = append(names, id.String())
	}
	return strings.Join(names, " ")
}

func main() {
	adapterFlag := flag.String("adapter", "", "adapter kind: usb, passthru or socketcan")
	portFlag := flag.String("port", "", "serial port, J2534 device or CAN interface")
	flag.Usage = usage
	flag.Parse()
	defer debug.Close()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	// Commands that never touch the TCU.
	switch args[0] {
	case "adapters":
		listAdapters()
		return
	case "fwinfo":
		if err := cmdFwInfo(args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	kind, info, err := adapterConfig(*adapterFlag, *portFlag)
	if err != nil {
		log.Fatal(err)
	}

	transport, err := hardware.Connect(info, kind)
	if err != nil {
		log.Fatalf("connect %s (%s): %v", info.Name, kind, err)
	}
	diag, err := nag52.New(transport)
	if err != nil {
		log.Fatal(err)
	}
	defer diag.Release()
	fmt.Println("Connected:", diag.Describe())

	switch args[0] {
	case "ident":
		err = cmdIdent(diag)
	case "monitor":
		err = cmdMonitor(diag, args[1:])
	case "settings":
		err = cmdSettings(diag, args[1:])
	case "config":
		err = cmdConfig(diag, args[1:])
	case "coredump":
		err = cmdCoredump(diag, args[1:])
	case "log":
		err = cmdLog(diag)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// adapterConfig resolves the adapter from flags, falling back to un52.yaml.
func adapterConfig(kindFlag, portFlag string) (hardware.Kind, hardware.Info, error) {
	viper.SetConfigName("un52")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.un52")
	viper.SetDefault("adapter.kind", "usb")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return 0, hardware.Info{}, fmt.Errorf("read config: %w", err)
		}
	}

	kindStr := viper.GetString("adapter.kind")
	if kindFlag != "" {
		kindStr = kindFlag
	}
	port := viper.GetString("adapter.port")
	if portFlag != "" {
		port = portFlag
	}
	kind, err := hardware.ParseKind(kindStr)
	if err != nil {
		return 0, hardware.Info{}, err
	}
	if port == "" {
		return 0, hardware.Info{}, fmt.Errorf("no port configured, set adapter.port in un52.yaml or pass -port")
	}
	return kind, hardware.Info{Name: port}, nil
}

func listAdapters() {
	fmt.Println("USB serial ports:")
	for _, info := range hardware.ListUSB() {
		fmt.Printf("  %-20s %s\n", info.Name, info.Description)
	}
	if cans := hardware.ListSocketCAN(); len(cans) > 0 {
		fmt.Println("SocketCAN interfaces:")
		for _, info := range cans {
			fmt.Printf("  %-20s %s\n", info.Name, info.Description)
		}
	}
}

func cmdIdent(diag *nag52.Diag) error {
	data, err := ident.Query(diag)
	if err != nil {
		return err
	}
	fmt.Printf("Part number:      %s\n", data.PartNumber)
	fmt.Printf("EGS mode:         %s\n", data.EgsMode)
	fmt.Printf("Board:            %s (HW week %d/%d)\n", data.BoardVer, data.HwWeek, data.HwYear)
	fmt.Printf("Software build:   week %d/%d\n", data.SwWeek, data.SwYear)
	fmt.Printf("Manufactured:     %02d.%02d.20%02d\n", data.ManfDay, data.ManfMonth, data.ManfYear)
	return nil
}

func cmdMonitor(diag *nag52.Diag, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("monitor needs a record name (%s)", recordNames())
	}
	var id records.RecordID
	found := false
	for _, candidate := range records.All {
		if strings.EqualFold(candidate.String(), args[0]) {
			id = candidate
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown record %q", args[0])
	}

	poller := records.NewPoller(diag, []records.RecordID{id}, 500*time.Millisecond)
	poller.Start()
	defer poller.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		rec, ok := poller.Get(id)
		if !ok {
			fmt.Printf("--- %s: no data ---\n", id)
			continue
		}
		fmt.Printf("--- %s @ %s ---\n", id, time.Now().Format("15:04:05"))
		for _, r := range rec.Rows() {
			mark := " "
			if r.Err {
				mark = "!"
			}
			fmt.Printf(" %s %-28s %s\n", mark, r.Label, r.Value)
		}
	}
	return nil
}

func cmdSettings(diag *nag52.Diag, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("settings needs: backup|restore|reset <block> [file]")
	}
	op, block := args[0], strings.ToUpper(args[1])
	file := ""
	if len(args) > 2 {
		file = args[2]
	}
	if op != "reset" && file == "" {
		return fmt.Errorf("settings %s needs a file argument", op)
	}
	if err := diag.Execute(settings.EnterDevMode); err != nil {
		return fmt.Errorf("enter dev mode: %w", err)
	}
	defer diag.Execute(settings.LeaveDevMode)

	switch block {
	case "TCC":
		return settingsOp[settings.TccSettings](diag, op, file)
	case "SOL":
		return settingsOp[settings.SolSettings](diag, op, file)
	case "SBS":
		return settingsOp[settings.SbsSettings](diag, op, file)
	case "NAG":
		return settingsOp[settings.NagSettings](diag, op, file)
	case "PRM":
		return settingsOp[settings.PrmSettings](diag, op, file)
	case "ADP":
		return settingsOp[settings.AdpSettings](diag, op, file)
	case "ETS":
		return settingsOp[settings.EtsSettings](diag, op, file)
	default:
		return fmt.Errorf("unknown settings block %q", args[1])
	}
}

func settingsOp[T settings.Settings](diag *nag52.Diag, op, file string) error {
	switch op {
	case "backup":
		var v T
		err := diag.Execute(func(s *nag52.Session) error {
			var err error
			v, err = settings.ReadBlock[T](s)
			return err
		})
		if err != nil {
			return err
		}
		if err := settings.SaveYAML(file, v); err != nil {
			return err
		}
		fmt.Printf("%s (revision %s) backed up to %s\n", v.Name(), v.RevisionName(), file)
		return nil
	case "restore":
		v, err := settings.LoadYAML[T](file)
		if err != nil {
			return err
		}
		err = diag.Execute(func(s *nag52.Session) error {
			return settings.WriteBlock(s, v)
		})
		if err != nil {
			return err
		}
		if v.EffectImmediate() {
			fmt.Printf("%s restored, effective immediately\n", v.Name())
		} else {
			fmt.Printf("%s restored, restart the TCU to apply\n", v.Name())
		}
		return nil
	case "reset":
		var v T
		err := diag.Execute(settings.ResetBlock[T])
		if err != nil {
			return err
		}
		fmt.Printf("%s reset to TCU defaults\n", v.Name())
		return nil
	default:
		return fmt.Errorf("unknown settings operation %q", op)
	}
}

func cmdConfig(diag *nag52.Diag, args []string) error {
	if len(args) != 1 || args[0] != "show" {
		return fmt.Errorf("config supports: show")
	}
	var (
		core  settings.TcmCoreConfig
		efuse settings.TcmEfuseConfig
	)
	err := diag.Execute(func(s *nag52.Session) error {
		var err error
		if core, err = settings.ReadCoreConfig(s); err != nil {
			return err
		}
		efuse, err = settings.ReadEfuse(s)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Board (EFUSE):      %s, manufactured %02d.%02d.20%02d\n",
		efuse.BoardVer, efuse.ManfDay, efuse.ManfMonth, efuse.ManfYear)
	fmt.Printf("Gearbox:            large NAG: %t\n", core.IsLargeNag == 1)
	fmt.Printf("Default profile:    %s\n", core.DefaultProfile)
	fmt.Printf("Differential ratio: %.3f\n", core.DiffRatio())
	fmt.Printf("Wheel circumf.:     %d mm\n", core.WheelCircumference)
	fmt.Printf("Engine:             %s, redline %d RPM, drag torque %.1f Nm\n",
		core.EngineType, core.RedLineRpm(), core.EngineDragTorque())
	fmt.Printf("EGS CAN layer:      %s\n", core.EgsCanType)
	fmt.Printf("Shifter:            %s\n", core.ShifterStyle)
	return nil
}

func cmdCoredump(diag *nag52.Diag, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("coredump needs a destination directory")
	}
	reader := coredump.NewReader(diag)
	reader.Start()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-reader.Done():
			status := reader.Status()
			if status.Phase == coredump.Aborted {
				return status.Err
			}
			dump, err := reader.Dump()
			if err != nil {
				return err
			}
			if dump == nil {
				fmt.Println("No coredump on flash")
				return nil
			}
			path, err := reader.SaveELF(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Coredump saved to %s (%d bytes)\n", path, len(dump))
			return nil
		case <-ticker.C:
			status := reader.Status()
			if status.Phase == coredump.Transferring {
				fmt.Printf("\rblock %d/%d, %d bytes", status.Block, status.TotalBlocks, status.BytesRead)
			}
		}
	}
}

func cmdFwInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("fwinfo needs a firmware image path")
	}
	fw, err := firmware.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Project:     %s\n", fw.Header.GetName())
	fmt.Printf("Version:     %s\n", fw.Header.GetVersion())
	fmt.Printf("Built:       %s %s\n", fw.Header.GetDate(), fw.Header.GetTime())
	fmt.Printf("ESP-IDF:     %s\n", fw.Header.GetIdfVersion())
	fmt.Printf("Image size:  %d bytes\n", len(fw.Raw))
	return nil
}

func cmdLog(diag *nag52.Diag) error {
	if !diag.CanReadLog() {
		return fmt.Errorf("this transport has no log stream, use the USB connection")
	}
	fmt.Println("Tailing board log, Ctrl-C to stop")
	for {
		msg, ok := diag.ReadLogMessage()
		if !ok {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		fmt.Println(msg)
	}
}
