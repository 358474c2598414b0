// Command kernel boots the simulated system and drives it for a fixed
// number of timer ticks, mirroring the shape of
// mit-pdos-biscuit/biscuit/src/kernel/main.go's Main() — construct every
// subsystem once, wire them together, exec an initial program, then hand
// off to the scheduler — with the hardware bring-up that file spends most
// of its length on (APIC/ACPI CPU startup, trap stub installation, the
// keyboard IRQ daemon) dropped, since none of it applies to a hardware-free
// simulation (spec.md §1).
//
// There is no ELF loader in this module (spec.md §1), so the "programs" an
// exec can name are a small fixed table of Go thread bodies registered
// below, standing in for compiled executables the real kernel would read
// off disk.
package main

import "flag"
import "fmt"
import "os"

import "github.com/sirupsen/logrus"

import "github.com/cs140-go/kernel/console"
import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/fsys"
import "github.com/cs140-go/kernel/kernel"
import "github.com/cs140-go/kernel/sched"
import "github.com/cs140-go/kernel/thread"

// demoPrograms is the fixed name->body table standing in for an executable
// directory (spec.md §1's "no ELF loader" leaves exec nothing else to
// resolve a cmdline against). Each body runs as the child thread itself,
// writing straight to the booted console rather than trapping through
// SYS_WRITE, since none of these have a simulated user address space to
// validate pointers against.
func demoPrograms(sys *kernel.System) map[string]func(argv []string) func(t *thread.Thread_t) {
	return map[string]func(argv []string) func(t *thread.Thread_t){
		"hello": func(argv []string) func(t *thread.Thread_t) {
			return func(t *thread.Thread_t) {
				sys.Console.Putbuf([]byte(fmt.Sprintf("hello from tid %d\n", t.Tid)))
				sys.Proc.Exit(t, 0)
			}
		},
		"spawn": func(argv []string) func(t *thread.Thread_t) {
			return func(t *thread.Thread_t) {
				child := sys.Proc.Exec(t, "hello")
				status := sys.Proc.Wait(t, child)
				sys.Console.Putbuf([]byte(fmt.Sprintf("spawn: child %d exited %d\n", child, status)))
				sys.Proc.Exit(t, status)
			}
		},
	}
}

func registerDemoPrograms(fs fsys.Filesystem, names map[string]func(argv []string) func(t *thread.Thread_t)) {
	for name := range names {
		if err := fs.Create(name, 0); err != nil && err != fsys.ErrExist {
			panic(err)
		}
	}
}

func main() {
	mlfqs := flag.Bool("mlfqs", false, "schedule with the 64-level MLFQ policy instead of strict priority with donation")
	ticks := flag.Int("ticks", 400, "number of simulated timer ticks to drive after boot")
	cmdline := flag.String("cmd", "hello", "initial command line to exec once the kernel is up")
	verbose := flag.Bool("verbose", false, "log at debug level instead of info")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	fs := fsys.NewMemFS()

	var sys *kernel.System
	load := func(parent *thread.Thread_t, argv []string) (func(t *thread.Thread_t), bool) {
		fn, ok := demoPrograms(sys)[argv[0]]
		if !ok {
			return nil, false
		}
		return fn(argv), true
	}

	policy := sched.PolicyPriority
	if *mlfqs {
		policy = sched.PolicyMLFQS
	}
	sys = kernel.Boot(policy, fs, console.Stdio{}, load, log)
	registerDemoPrograms(fs, demoPrograms(sys))

	log.WithFields(logrus.Fields{"mlfqs": *mlfqs, "cmd": *cmdline}).Info("kernel: booted")

	child := sys.Proc.Exec(sys.K.InitialThread, *cmdline)
	if child == defs.TidError {
		log.WithField("cmd", *cmdline).Error("kernel: exec failed")
		os.Exit(1)
	}

	for i := 0; i < *ticks; i++ {
		sys.Tick()
	}

	status := sys.Proc.Wait(sys.K.InitialThread, child)
	log.WithFields(logrus.Fields{"tid": child, "status": status}).Info("kernel: initial program exited")
}
