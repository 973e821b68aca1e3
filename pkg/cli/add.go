package cli

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/saazpayhq/saazpay/pkg/templates"
	"github.com/sirupsen/logrus"
)

// ComponentsDir is where templates land inside a project
var ComponentsDir = filepath.Join("src", "components")

func newAddCommand(out, errOut io.Writer) *Command {
	cmd := &Command{
		Name:        "add",
		Description: "Copy a template folder into src/components",
		Flags:       flag.NewFlagSet("add", flag.ContinueOnError),
		out:         out,
		errOut:      errOut,
	}
	cmd.Flags.SetOutput(errOut)
	cmd.Flags.String("dir", ".", "Project root directory")
	cmd.Flags.Bool("v", false, "Verbose output")
	cmd.Run = cmd.runAdd

	return cmd
}

func (c *Command) runAdd(args []string) error {
	if err := c.Flags.Parse(args); err != nil {
		return ErrUsage
	}
	if c.Flags.NArg() != 1 {
		return ErrUsage
	}

	name := c.Flags.Arg(0)
	dir := c.Flags.Lookup("dir").Value.String()
	verbose := c.Flags.Lookup("v").Value.String() == "true"

	log := logrus.New()
	log.SetOutput(c.errOut)
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	folder, err := templates.Folder(name)
	if err != nil {
		log.WithError(err).Debug("template folder lookup failed")
		return &UnknownFolderError{Name: name}
	}

	target := filepath.Join(dir, ComponentsDir, name)
	log.WithField("target", target).Debug("adding template folder")

	copied, err := copyFolder(folder, path.Join("templates", name), target, func(src, dst string) {
		fmt.Fprintf(c.out, "Copied %s -> %s\n", src, dst)
		log.WithFields(logrus.Fields{"src": src, "dst": dst}).Debug("copied template file")
	})
	if err != nil {
		return err
	}

	log.WithField("files", copied).Debug("template folder added")
	fmt.Fprintln(c.out, "Saazpay starter templates copied successfully. You're ready to go!")
	return nil
}

// copyFolder copies every file of folder below target, creating directories
// as needed. Existing files are overwritten.
func copyFolder(folder fs.FS, srcRoot, target string, copied func(src, dst string)) (int, error) {
	count := 0
	err := fs.WalkDir(folder, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dst := filepath.Join(target, filepath.FromSlash(p))
		if d.IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dst, err)
			}
			return nil
		}

		data, err := fs.ReadFile(folder, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", p, err)
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", dst, err)
		}
		count++
		copied(path.Join(srcRoot, p), dst)
		return nil
	})
	return count, err
}
