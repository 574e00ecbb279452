package instance

import "context"

// SaveHook 容器保存成功后的回调
type SaveHook func(ctx context.Context, containerID string)

// Store 容器持久化接口
// SaveContainer 以单个事务写入容器及其全部存活实例,不在集合中的旧实例被软删除
type Store interface {
	CreateContainer(ctx context.Context, c *Container) error
	LoadContainer(ctx context.Context, id string) (*Container, error)
	SaveContainer(ctx context.Context, c *Container) error
	DeleteContainer(ctx context.Context, id string) error

	// OnSave 注册保存回调,回调在事务提交后执行
	OnSave(hook SaveHook)
}
