package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
	"github.com/forest6511/vaultfs/pkg/filesystem"
	"github.com/forest6511/vaultfs/pkg/vault"
)

var (
	lsLong      bool
	putParents  bool
	putForce    bool
	rmRecursive bool
)

func init() {
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)

	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "Show sizes and modification times")
	putCmd.Flags().BoolVarP(&putParents, "parents", "p", false, "Create missing parent folders")
	putCmd.Flags().BoolVarP(&putForce, "force", "f", false, "Replace the content of an existing file")
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "Remove folders and their contents")
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a vault folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := "/"
		if len(args) == 1 {
			p = args[0]
		}
		return withSession(cmd, func(s *vault.Session) error {
			fs := s.Filesystem()
			folder, file, err := fs.Browse(p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if file != nil {
				printFile(out, *file)
				return nil
			}
			folders, files, err := fs.Children(folder.ID)
			if err != nil {
				return err
			}
			for _, f := range folders {
				if lsLong {
					n, _ := fs.ItemCount(f.ID)
					fmt.Fprintf(out, "%10s  %s  %s/\n", fmt.Sprintf("%d items", n), f.UpdatedAt.Format("2006-01-02 15:04"), f.Name)
				} else {
					fmt.Fprintf(out, "%s/\n", f.Name)
				}
			}
			for _, f := range files {
				printFile(out, f)
			}
			return nil
		})
	},
}

func printFile(w io.Writer, f filesystem.FileMetadata) {
	if lsLong {
		fmt.Fprintf(w, "%10s  %s  %s\n", cli.FormatSize(f.Blob.SizeBytes), f.UpdatedAt.Format("2006-01-02 15:04"), f.Name)
		return
	}
	fmt.Fprintln(w, f.Name)
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder and any missing parents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *vault.Session) error {
			_, err := s.Filesystem().MkdirAll(args[0])
			return err
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <local-file> <vault-path>",
	Short: "Store a local file in the vault",
	Long: `Store a local file in the vault.

If <vault-path> is an existing folder or ends with '/', the file keeps its
local name inside that folder.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		return mutate(cmd, func(s *vault.Session) error {
			fs := s.Filesystem()
			dest := args[1]
			if strings.HasSuffix(dest, "/") {
				dest = path.Join(dest, filepath.Base(args[0]))
			} else if folder, _, err := fs.Browse(dest); err == nil && folder != nil {
				dest = path.Join(dest, filepath.Base(args[0]))
			}
			dir, name := path.Split(path.Join("/", dest))

			parent, existing, err := fs.Browse(dir)
			switch {
			case errors.Is(err, filesystem.ErrNotFound) && putParents:
				f, err := fs.MkdirAll(dir)
				if err != nil {
					return err
				}
				parent = &f
			case err != nil:
				return fmt.Errorf("parent folder: %w", err)
			case existing != nil:
				return fmt.Errorf("%s is a file", dir)
			}

			if _, file, err := fs.Browse(path.Join(dir, name)); err == nil && file != nil {
				if !putForce {
					return fmt.Errorf("%w: %s (use --force to replace)", filesystem.ErrNameConflict, dest)
				}
				ref, err := s.PutBlob(data)
				if err != nil {
					return err
				}
				return fs.UpdateFileBlob(file.ID, ref)
			}

			ref, err := s.PutBlob(data)
			if err != nil {
				return err
			}
			_, err = fs.AddFile(parent.ID, name, ref)
			return err
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <vault-path> [local-file]",
	Short: "Write a vault file to a local file or stdout",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			_, file, err := s.Filesystem().Browse(args[0])
			if err != nil {
				return err
			}
			if file == nil {
				return fmt.Errorf("%s is a folder", args[0])
			}
			data, err := s.GetBlob(file.Blob)
			if err != nil {
				return fmt.Errorf("failed to read content: %w", err)
			}
			if len(args) == 1 || args[1] == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[1], data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			return nil
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <source> <dest>",
	Short: "Move or rename a file or folder",
	Long: `Move or rename a file or folder.

If <dest> is an existing folder the source is moved into it. Otherwise the
source is moved to the parent of <dest> and renamed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *vault.Session) error {
			return move(s.Filesystem(), args[0], args[1])
		})
	},
}

func move(fs *filesystem.Store, src, dst string) error {
	srcFolder, srcFile, err := fs.Browse(src)
	if err != nil {
		return err
	}
	if srcFolder != nil && srcFolder.IsRoot() {
		return filesystem.ErrRootImmutable
	}

	var target filesystem.FolderMetadata
	name := ""
	if folder, _, err := fs.Browse(dst); err == nil && folder != nil {
		target = *folder
	} else {
		dir, base := path.Split(path.Join("/", dst))
		folder, file, err := fs.Browse(dir)
		if err != nil {
			return fmt.Errorf("destination folder: %w", err)
		}
		if file != nil {
			return fmt.Errorf("%s is a file", dir)
		}
		target = *folder
		name = base
	}

	if srcFile != nil {
		if srcFile.ParentID == target.ID && (name == "" || name == srcFile.Name) {
			return nil
		}
		return fs.RelocateFile(srcFile.ID, target.ID, name)
	}
	if *srcFolder.ParentID == target.ID && (name == "" || name == srcFolder.Name) {
		return nil
	}
	return fs.RelocateFolder(srcFolder.ID, target.ID, name)
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *vault.Session) error {
			fs := s.Filesystem()
			folder, file, err := fs.Browse(args[0])
			if err != nil {
				return err
			}
			if file != nil {
				return fs.DeleteFile(file.ID)
			}
			if err := fs.DeleteFolder(folder.ID, rmRecursive); err != nil {
				if errors.Is(err, filesystem.ErrFolderNotEmpty) {
					return fmt.Errorf("%w: %s (use -r to remove its contents)", err, args[0])
				}
				return err
			}
			return nil
		})
	},
}
