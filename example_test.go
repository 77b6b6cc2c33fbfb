package vmmap_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/vmmap"
)

func Example() {
	dir, _ := os.MkdirTemp("", "vmmap-example")
	defer os.RemoveAll(dir)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), make([]byte, vmmap.PageSize), 0o600)

	k, err := vmmap.New(vmmap.WithMemory(4<<20), vmmap.WithRootDir(dir))
	if err != nil {
		panic(err)
	}
	defer k.Close()

	ctx := context.Background()
	p := k.Init()
	fd, _ := p.Open("notes.txt", vmmap.ORdWr)
	addr, _ := p.Mmap(ctx, 0, vmmap.PageSize, vmmap.ProtRead|vmmap.ProtWrite, vmmap.MapShared, fd, 0)

	_ = p.Store(ctx, addr, []byte("hello"))
	_ = p.Munmap(ctx, addr, vmmap.PageSize)

	data, _ := os.ReadFile(filepath.Join(dir, "notes.txt"))
	fmt.Println(string(data[:5]))
	// Output: hello
}
